package model

import (
	"database/sql"
	"time"
)

// Job is the async_jobs row as read by the API service. Result and error
// columns are null until the job reaches a terminal state.
type Job struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	JobType      string         `db:"job_type"`
	Status       string         `db:"status"`
	Progress     int            `db:"progress"`
	Message      string         `db:"progress_message"`
	Input        []byte         `db:"input_payload"`
	Result       []byte         `db:"result_payload"`
	ErrorKind    sql.NullString `db:"error_kind"`
	ErrorMessage sql.NullString `db:"error_message"`
	Attempts     int            `db:"attempts"`
	MaxAttempts  int            `db:"max_attempts"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
}
