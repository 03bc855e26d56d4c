package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heirclark17/resume-ai-backend/internal/config"
	"github.com/heirclark17/resume-ai-backend/internal/gateway"
	"github.com/heirclark17/resume-ai-backend/internal/provider"
	"github.com/heirclark17/resume-ai-backend/internal/worker"
	"github.com/heirclark17/resume-ai-backend/internal/worker/handlers"
	"github.com/heirclark17/resume-ai-backend/internal/worker/storage"
	"github.com/heirclark17/resume-ai-backend/shared/logger"
	"github.com/heirclark17/resume-ai-backend/shared/postgresql"
	"github.com/heirclark17/resume-ai-backend/shared/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client. The claim loop polls the database either
	// way, so a missing broker only costs pickup latency.
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		appLogger.Warn("RabbitMQ unavailable, falling back to polling only",
			slog.Any("error", err),
		)
		rabbitClient = nil
	} else {
		appLogger.Info("RabbitMQ connection established")
	}

	// Gateway guarding all outbound provider calls
	gw := gateway.New(cfg.Gateway, appLogger.Logger)

	// Handler registry wired to the configured providers
	registry := worker.NewRegistry()
	handlers.RegisterAll(registry, buildProviders(cfg, gw, appLogger.Logger))

	if len(registry.JobTypes()) == 0 {
		return fmt.Errorf("no job handlers registered: no provider is configured")
	}

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:       appLogger.Logger,
		Storage:      storage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		RabbitClient: rabbitClient,
		Gateway:      gw,
		Registry:     registry,
		Worker:       cfg.Worker,
		Prefetch:     cfg.RabbitMQ.Consumer.PrefetchCount,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerInstance.WorkerID()),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop worker
	cancel()

	// Stop worker, bounded by its own shutdown timeout
	workerInstance.Stop()

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// buildProviders creates a client for each configured provider. API keys
// come from the environment, never the config file.
func buildProviders(cfg *config.Config, gw *gateway.Gateway, log *slog.Logger) handlers.Providers {
	var p handlers.Providers

	for name, pc := range cfg.Providers {
		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			log.Warn("Provider API key not set, skipping",
				slog.String("provider", name),
				slog.String("env_var", pc.APIKeyEnv),
			)
			continue
		}

		client := provider.New(name, pc.BaseURL, apiKey, gw, log)
		switch name {
		case "openai":
			p.OpenAI = client
		case "perplexity":
			p.Perplexity = client
		case "firecrawl":
			p.Firecrawl = client
		default:
			log.Warn("Unknown provider in config, ignoring",
				slog.String("provider", name),
			)
		}
	}

	return p
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
