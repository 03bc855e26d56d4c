package handler

import (
	"log/slog"

	"github.com/heirclark17/resume-ai-backend/internal/api/storage"
	"github.com/heirclark17/resume-ai-backend/shared/postgresql"
	"github.com/heirclark17/resume-ai-backend/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger       *slog.Logger
	storage      *storage.Storage
	rabbitClient *rabbitmq.Client
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		storage:      storage.NewStorage(deps.DBClient),
		rabbitClient: deps.RabbitClient,
	}
}
