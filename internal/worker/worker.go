package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heirclark17/resume-ai-backend/internal/config"
	"github.com/heirclark17/resume-ai-backend/internal/gateway"
	"github.com/heirclark17/resume-ai-backend/internal/worker/domain"
	"github.com/heirclark17/resume-ai-backend/shared/rabbitmq"
)

// jobStore is the subset of the storage layer the worker needs. The worker
// tests swap in an in-memory implementation.
type jobStore interface {
	ClaimNext(ctx context.Context, workerID string, staleAfter time.Duration) (*domain.Job, error)
	UpdateProgress(ctx context.Context, jobID, workerID string, percent int, message string) error
	Heartbeat(ctx context.Context, jobID, workerID string) error
	Complete(ctx context.Context, jobID, workerID string, result json.RawMessage) error
	Fail(ctx context.Context, jobID, workerID, kind, message string) error
	FailAbandoned(ctx context.Context, staleAfter time.Duration) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds worker dependencies and settings
type Config struct {
	Logger       *slog.Logger
	Storage      jobStore
	RabbitClient *rabbitmq.Client
	Gateway      *gateway.Gateway
	Registry     *Registry
	Worker       config.WorkerConfig
	Prefetch     int
}

// Worker drives the claim-based job loop. The database is the source of
// truth for what runs; RabbitMQ only wakes idle pollers early, so losing a
// notification delays a job by at most one poll interval.
type Worker struct {
	logger       *slog.Logger
	storage      jobStore
	rabbitClient *rabbitmq.Client
	gateway      *gateway.Gateway
	registry     *Registry
	cfg          config.WorkerConfig
	prefetch     int

	workerID string
	wake     chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance with a process-unique worker ID
func NewWorker(cfg *Config) *Worker {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}

	return &Worker{
		logger:       cfg.Logger,
		storage:      cfg.Storage,
		rabbitClient: cfg.RabbitClient,
		gateway:      cfg.Gateway,
		registry:     cfg.Registry,
		cfg:          cfg.Worker,
		prefetch:     cfg.Prefetch,
		workerID:     fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
		wake:         make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
	}
}

// WorkerID returns the process-unique claim identity
func (w *Worker) WorkerID() string {
	return w.workerID
}

// Start launches the claim loops, the wake consumer, the sweeper, and the
// metrics reporter, then blocks until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.cfg.Concurrency),
		slog.Duration("job_timeout", w.cfg.JobTimeout),
		slog.Any("job_types", w.registry.JobTypes()),
	)

	if w.rabbitClient != nil {
		if err := w.startWakeConsumer(ctx); err != nil {
			// Notifications are an optimization; polling alone still
			// drains the queue.
			w.logger.Warn("Wake consumer unavailable, relying on polling",
				slog.String("error", err.Error()),
			)
		}
	}

	w.spawnClaimLoops(ctx)
	w.startSweeper(ctx)
	w.startMetricsReporter(ctx)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...",
		slog.String("worker_id", w.workerID),
	)
	close(w.stopChan)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped")
	case <-time.After(w.cfg.ShutdownTimeout):
		w.logger.Warn("Shutdown timeout exceeded, abandoning in-flight jobs",
			slog.Duration("timeout", w.cfg.ShutdownTimeout),
		)
	}
}

// startMetricsReporter periodically logs gateway counters and latency
// summaries so operators can watch dependency health without a metrics
// backend.
func (w *Worker) startMetricsReporter(ctx context.Context) {
	if w.gateway == nil || w.cfg.MetricsInterval <= 0 {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.cfg.MetricsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := w.gateway.Metrics().Snapshot()
				w.logger.Info("Gateway metrics",
					slog.Any("counters", snap.Counters),
					slog.Any("latency", snap.Histograms),
					slog.Any("circuits", w.gateway.CircuitStates()),
				)
			}
		}
	}()
}
