package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/heirclark17/resume-ai-backend/internal/gateway"
	"github.com/heirclark17/resume-ai-backend/internal/worker/domain"
)

// claimAndProcess claims one eligible job and runs it to a terminal state.
// Returns true when a job was claimed, false when the queue was empty.
func (w *Worker) claimAndProcess(ctx context.Context) (bool, error) {
	job, err := w.storage.ClaimNext(ctx, w.workerID, w.cfg.ClaimStaleAfter)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.processJob(ctx, job)
	return true, nil
}

// processJob runs a claimed job under its timeout with a heartbeat keeping
// the claim fresh. Every exit path writes a terminal state except a lost
// claim, which another worker now owns.
func (w *Worker) processJob(ctx context.Context, job *domain.Job) {
	start := time.Now()
	w.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.JobType),
		slog.String("worker_id", w.workerID),
		slog.Int("attempt", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
	)

	handler, ok := w.registry.Get(job.JobType)
	if !ok {
		w.failJob(ctx, job, domain.ErrKindNoHandler,
			fmt.Sprintf("no handler registered for job type %q", job.JobType))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.ID, heartbeatDone)
	defer close(heartbeatDone)

	progress := func(percent int, message string) {
		if err := w.storage.UpdateProgress(jobCtx, job.ID, w.workerID, percent, message); err != nil {
			// Progress is advisory; a lost claim surfaces on the
			// terminal write.
			w.logger.Warn("Failed to update job progress",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	result, err := w.runHandler(jobCtx, handler, job, progress)
	if err != nil {
		kind := classifyError(err)
		w.logger.Error("Job execution failed",
			slog.String("job_id", job.ID),
			slog.String("job_type", job.JobType),
			slog.String("error_kind", kind),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		w.failJob(ctx, job, kind, err.Error())
		return
	}

	if err := w.storage.Complete(ctx, job.ID, w.workerID, result); err != nil {
		w.logTerminalWriteError(job.ID, "completed", err)
		return
	}

	w.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.JobType),
		slog.Duration("duration", time.Since(start)),
	)
}

// runHandler invokes the handler with panic recovery so one bad job cannot
// take down the claim loop.
func (w *Worker) runHandler(ctx context.Context, handler HandlerFunc, job *domain.Job, progress ProgressFunc) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Handler panicked",
				slog.String("job_id", job.ID),
				slog.String("job_type", job.JobType),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, job, progress)
}

// failJob writes the failed terminal state. The parent context is used, not
// the job context, so a timed-out job can still record its failure.
func (w *Worker) failJob(ctx context.Context, job *domain.Job, kind, message string) {
	if err := w.storage.Fail(ctx, job.ID, w.workerID, kind, message); err != nil {
		w.logTerminalWriteError(job.ID, "failed", err)
	}
}

func (w *Worker) logTerminalWriteError(jobID, status string, err error) {
	if errors.Is(err, domain.ErrClaimConflict) {
		// Our claim went stale and another worker took over. Its
		// outcome wins.
		w.logger.Warn("Job reclaimed by another worker, dropping result",
			slog.String("job_id", jobID),
		)
		return
	}
	w.logger.Error("Failed to write terminal job status",
		slog.String("job_id", jobID),
		slog.String("status", status),
		slog.String("error", err.Error()),
	)
}

// sendJobHeartbeat refreshes claimed_at while the job runs so the claim is
// not treated as stale
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.storage.Heartbeat(ctx, jobID, w.workerID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// classifyError maps a handler error to the stable error kind stored on the
// job. Pollers use the kind to decide whether resubmitting could help.
func classifyError(err error) string {
	var circuitErr *gateway.CircuitOpenError
	if errors.As(err, &circuitErr) {
		return domain.ErrKindCircuitOpen
	}

	var limitErr *gateway.ConcurrencyLimitError
	if errors.As(err, &limitErr) {
		return domain.ErrKindRateLimited
	}

	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return domain.ErrKindRateLimited
		case httpErr.StatusCode >= 500:
			return domain.ErrKindDependency
		default:
			return domain.ErrKindTerminal
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrKindTimeout
	}

	return domain.ErrKindInternal
}
