package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/heirclark17/resume-ai-backend/internal/api/domain"
	"github.com/heirclark17/resume-ai-backend/internal/api/dto"
	"github.com/heirclark17/resume-ai-backend/internal/api/model"
	"github.com/heirclark17/resume-ai-backend/internal/api/storage"
)

const maxJobAttempts = 10

// CreateJob handles POST /api/v1/jobs
// Persists a new pending job and nudges the workers over RabbitMQ
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	if maxAttempts > maxJobAttempts {
		maxAttempts = maxJobAttempts
	}

	now := time.Now().UTC()
	job := model.Job{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		JobType:     req.JobType,
		Status:      domain.JobStatusPending,
		Input:       []byte(req.Input),
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.JobType),
		slog.String("user_id", job.UserID),
	)

	// The row is durable, so a lost notification only delays pickup until
	// the next worker poll.
	h.notifyWorkers(c, job.ID)

	c.JSON(http.StatusAccepted, dto.CreateJobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	})
}

// notifyWorkers publishes a wake notification for the new job, best effort
func (h *JobHandler) notifyWorkers(c *gin.Context, jobID string) {
	if h.rabbitClient == nil {
		return
	}

	body, err := json.Marshal(gin.H{"job_id": jobID})
	if err != nil {
		h.logger.Warn("Failed to marshal wake notification",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Warn("Failed to publish wake notification, workers will poll",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the polling view of a job: status, progress, and on terminal
// states the result or error
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobStatusResponse(job))
}

func jobStatusResponse(job *model.Job) dto.JobStatusResponse {
	resp := dto.JobStatusResponse{
		JobID:       job.ID,
		UserID:      job.UserID,
		JobType:     job.JobType,
		Status:      job.Status,
		Progress:    job.Progress,
		Message:     job.Message,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}

	if job.Status == domain.JobStatusCompleted && len(job.Result) > 0 {
		resp.Result = json.RawMessage(job.Result)
	}

	if job.Status == domain.JobStatusFailed {
		resp.Error = &dto.JobError{
			Kind:    job.ErrorKind.String,
			Message: job.ErrorMessage.String,
		}
	}

	if job.CompletedAt.Valid {
		resp.CompletedAt = job.CompletedAt.Time.Format(time.RFC3339)
	}

	return resp
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Status != "" && !domain.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status filter",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		UserID:   req.UserID,
		JobType:  req.JobType,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	summaries := make([]dto.JobSummary, len(jobs))
	for i, job := range jobs {
		summaries[i] = dto.JobSummary{
			JobID:     job.ID,
			UserID:    job.UserID,
			JobType:   job.JobType,
			Status:    job.Status,
			Progress:  job.Progress,
			CreatedAt: job.CreatedAt.Format(time.RFC3339),
			UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.ID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       summaries,
		NextCursor: nextCursor,
	})
}
