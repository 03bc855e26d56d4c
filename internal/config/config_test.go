package config

import (
	"testing"
	"time"

	"github.com/heirclark17/resume-ai-backend/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "jobs_db", cfg.Database.Database)
				assert.Equal(t, "jobs_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "jobs_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "job-api-service", cfg.App.Name)
				assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
				assert.Equal(t, 2*time.Minute, cfg.Worker.ClaimStaleAfter)
			}
		})
	}
}

func TestLoad_GatewaySection(t *testing.T) {
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	require.Contains(t, cfg.Gateway, "openai")
	require.Contains(t, cfg.Gateway, "playwright")

	openai := cfg.Gateway["openai"]
	assert.Equal(t, 10, openai.MaxConcurrent)
	assert.Equal(t, 90*time.Second, openai.CallTimeout)
	assert.Equal(t, 2, openai.MaxRetries)
	assert.Equal(t, 5, openai.FailureThreshold)
	assert.Equal(t, 30*time.Second, openai.RecoveryTimeout)

	// The screenshot service tolerates far less parallelism than the
	// completion APIs.
	playwright := cfg.Gateway["playwright"]
	assert.Equal(t, 2, playwright.MaxConcurrent)
	assert.Equal(t, 2, playwright.FailureThreshold)

	require.Contains(t, cfg.Providers, "openai")
	assert.Equal(t, "https://api.openai.com/v1", cfg.Providers["openai"].BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Providers["openai"].APIKeyEnv)
}

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "jobs_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "jobs_exchange",
			},
			Queue: QueueConfig{
				Name: "jobs_queue",
			},
		},
		Worker: WorkerConfig{
			Concurrency:       4,
			JobTimeout:        5 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			PollInterval:      2 * time.Second,
			MaxIdleInterval:   10 * time.Second,
			ClaimStaleAfter:   2 * time.Minute,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			wantErr:   true,
			errString: "worker job_timeout must be greater than 0",
		},
		{
			name:      "zero heartbeat interval",
			mutate:    func(c *Config) { c.Worker.HeartbeatInterval = 0 },
			wantErr:   true,
			errString: "worker heartbeat_interval must be greater than 0",
		},
		{
			name:      "zero poll interval",
			mutate:    func(c *Config) { c.Worker.PollInterval = 0 },
			wantErr:   true,
			errString: "worker poll_interval must be greater than 0",
		},
		{
			name:      "zero claim staleness",
			mutate:    func(c *Config) { c.Worker.ClaimStaleAfter = 0 },
			wantErr:   true,
			errString: "worker claim_stale_after must be greater than 0",
		},
		{
			name: "staleness below heartbeat",
			mutate: func(c *Config) {
				c.Worker.ClaimStaleAfter = 10 * time.Second
				c.Worker.HeartbeatInterval = 30 * time.Second
			},
			wantErr:   true,
			errString: "claim_stale_after must exceed heartbeat_interval",
		},
		{
			name:      "zero shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			wantErr:   true,
			errString: "worker shutdown_timeout must be greater than 0",
		},
		{
			name: "negative gateway concurrency",
			mutate: func(c *Config) {
				c.Gateway = map[string]gateway.DependencyConfig{
					"openai": {MaxConcurrent: -1},
				}
			},
			wantErr:   true,
			errString: "max_concurrent must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
