package dto

import "encoding/json"

type CreateJobRequest struct {
	UserID      string          `json:"user_id" binding:"required"`
	JobType     string          `json:"job_type" binding:"required"`
	Input       json.RawMessage `json:"input" binding:"required"`
	MaxAttempts int             `json:"max_attempts"`
}

type CreateJobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// JobError carries the stable error kind alongside the human-readable
// message so clients can branch without parsing text.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobStatusResponse is the polling shape for GET /jobs/:job_id. Result is
// present only for completed jobs, Error only for failed ones.
type JobStatusResponse struct {
	JobID       string          `json:"job_id"`
	UserID      string          `json:"user_id"`
	JobType     string          `json:"job_type"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *JobError       `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

type ListJobsRequest struct {
	UserID   string `form:"user_id"`
	JobType  string `form:"job_type"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobSummary `json:"jobs"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// JobSummary is the list shape: status and progress without payloads
type JobSummary struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	JobType   string `json:"job_type"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
