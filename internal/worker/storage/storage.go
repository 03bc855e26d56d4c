package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/heirclark17/resume-ai-backend/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker. Claims are
// serialized by the database via FOR UPDATE SKIP LOCKED, so any number of
// worker processes can share the table safely.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimNext atomically claims the oldest eligible job: a pending one, or a
// processing one whose claim went stale (its worker likely crashed). Each
// claim increments attempts; jobs out of attempts are skipped. Returns
// (nil, nil) when nothing is claimable.
//
// On a re-claim the progress value carries over (progress never regresses)
// but the message is cleared, so pollers do not see text from the dead
// worker's run presented as current.
func (s *Storage) ClaimNext(ctx context.Context, workerID string, staleAfter time.Duration) (*domain.Job, error) {
	query := `
		UPDATE async_jobs
		SET status = $1,
		    claimed_by = $2,
		    claimed_at = NOW(),
		    attempts = attempts + 1,
		    progress_message = NULL,
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM async_jobs
			WHERE (status = $3
			       OR (status = $1 AND claimed_at < NOW() - make_interval(secs => $4)))
			  AND attempts < max_attempts
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, job_type, status, progress, progress_message,
		          input_payload, attempts, max_attempts, claimed_by, claimed_at,
		          created_at, updated_at
	`

	var job domain.Job
	var input []byte
	var message, claimedBy sql.NullString
	var claimedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query,
		domain.JobStatusProcessing,
		workerID,
		domain.JobStatusPending,
		staleAfter.Seconds(),
	).Scan(
		&job.ID,
		&job.UserID,
		&job.JobType,
		&job.Status,
		&job.Progress,
		&message,
		&input,
		&job.Attempts,
		&job.MaxAttempts,
		&claimedBy,
		&claimedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job.Input = input
	job.Message = message.String
	job.ClaimedBy = claimedBy.String
	job.ClaimedAt = claimedAt.Time

	s.logger.Info("Job claimed",
		slog.String("job_id", job.ID),
		slog.String("worker_id", workerID),
		slog.String("job_type", job.JobType),
		slog.Int("attempt", job.Attempts),
	)

	return &job, nil
}

// UpdateProgress mutates progress fields of a job still claimed by workerID.
// Percent never regresses so pollers observe monotonic progress. A lost
// claim surfaces as ErrClaimConflict.
func (s *Storage) UpdateProgress(ctx context.Context, jobID, workerID string, percent int, message string) error {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	query := `
		UPDATE async_jobs
		SET progress = GREATEST(progress, $3),
		    progress_message = $4,
		    updated_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = $5
	`

	result, err := s.db.ExecContext(ctx, query, jobID, workerID, percent, message, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.ownershipError(ctx, jobID)
	}

	return nil
}

// Heartbeat refreshes claimed_at for a running job so live work is not
// treated as abandoned.
func (s *Storage) Heartbeat(ctx context.Context, jobID, workerID string) error {
	query := `
		UPDATE async_jobs
		SET claimed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, jobID, workerID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.ownershipError(ctx, jobID)
	}

	return nil
}

// Complete marks a job completed with its result payload. Completing an
// already-completed job is a no-op; completing a failed job returns
// ErrAlreadyTerminal.
func (s *Storage) Complete(ctx context.Context, jobID, workerID string, result json.RawMessage) error {
	query := `
		UPDATE async_jobs
		SET status = $3,
		    progress = 100,
		    progress_message = 'Completed',
		    result_payload = $4,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query, jobID, workerID,
		domain.JobStatusCompleted, []byte(result), domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.terminalConflict(ctx, jobID, domain.JobStatusCompleted)
	}

	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)

	return nil
}

// Fail marks a job failed with a stable error kind and message. Failing an
// already-failed job is a no-op; failing a completed job returns
// ErrAlreadyTerminal.
func (s *Storage) Fail(ctx context.Context, jobID, workerID, kind, message string) error {
	query := `
		UPDATE async_jobs
		SET status = $3,
		    progress_message = 'Failed',
		    error_kind = $4,
		    error_message = $5,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = $6
	`

	res, err := s.db.ExecContext(ctx, query, jobID, workerID,
		domain.JobStatusFailed, kind, message, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.terminalConflict(ctx, jobID, domain.JobStatusFailed)
	}

	s.logger.Warn("Job failed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("error_kind", kind),
		slog.String("error", message),
	)

	return nil
}

// FailAbandoned marks stale processing jobs with no attempts remaining as
// failed. Jobs with attempts left are reclaimed by ClaimNext instead.
// Returns the number of jobs failed.
func (s *Storage) FailAbandoned(ctx context.Context, staleAfter time.Duration) (int64, error) {
	query := `
		UPDATE async_jobs
		SET status = $1,
		    progress_message = 'Failed',
		    error_kind = $2,
		    error_message = 'claim expired with no attempts remaining',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = $3
		  AND claimed_at < NOW() - make_interval(secs => $4)
		  AND attempts >= max_attempts
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, domain.ErrKindAbandoned,
		domain.JobStatusProcessing, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to fail abandoned jobs: %w", err)
	}

	return res.RowsAffected()
}

// DeleteTerminalBefore deletes completed/failed jobs created before cutoff.
// Returns the number of rows deleted.
func (s *Storage) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM async_jobs
		WHERE status IN ($1, $2) AND created_at < $3
	`

	res, err := s.db.ExecContext(ctx, query, domain.JobStatusCompleted, domain.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", err)
	}

	return res.RowsAffected()
}

// ownershipError distinguishes a missing job from a lost claim after an
// ownership-guarded update matched no rows.
func (s *Storage) ownershipError(ctx context.Context, jobID string) error {
	var status string
	err := s.db.GetContext(ctx, &status, `SELECT status FROM async_jobs WHERE id = $1`, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrJobNotFound
		}
		return fmt.Errorf("failed to check job status: %w", err)
	}
	return domain.ErrClaimConflict
}

// terminalConflict classifies a terminal write that matched no rows:
// the same terminal state is idempotent, the other one is a conflict.
func (s *Storage) terminalConflict(ctx context.Context, jobID, wantStatus string) error {
	var status string
	err := s.db.GetContext(ctx, &status, `SELECT status FROM async_jobs WHERE id = $1`, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrJobNotFound
		}
		return fmt.Errorf("failed to check job status: %w", err)
	}

	if status == wantStatus {
		// Idempotent repeat of the same outcome.
		return nil
	}
	if status == domain.JobStatusCompleted || status == domain.JobStatusFailed {
		return domain.ErrAlreadyTerminal
	}
	return domain.ErrClaimConflict
}
