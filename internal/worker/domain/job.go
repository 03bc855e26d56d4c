package domain

import (
	"encoding/json"
	"time"
)

// Job is the unit of asynchronous work as seen by the worker. The input and
// result payloads are opaque to the core; handlers interpret them per job
// type.
type Job struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	JobType     string          `db:"job_type"`
	Status      string          `db:"status"`
	Progress    int             `db:"progress"`
	Message     string          `db:"progress_message"`
	Input       json.RawMessage `db:"input_payload"`
	Attempts    int             `db:"attempts"`
	MaxAttempts int             `db:"max_attempts"`
	ClaimedBy   string          `db:"claimed_by"`
	ClaimedAt   time.Time       `db:"claimed_at"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}
