package worker

import (
	"context"
	"log/slog"
	"time"
)

// startSweeper runs the periodic maintenance loop: abandoned jobs out of
// attempts are failed, and when retention cleanup is enabled, old terminal
// rows are deleted. Reclaimable stale jobs need no sweeping - ClaimNext
// picks them up directly.
func (w *Worker) startSweeper(ctx context.Context) {
	interval := w.cfg.ClaimStaleAfter
	if interval <= 0 {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastCleanup time.Time

		for {
			select {
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.sweepAbandoned(ctx)

				if w.cfg.Cleanup.Enabled && time.Since(lastCleanup) >= w.cfg.Cleanup.Interval {
					w.cleanupOldJobs(ctx)
					lastCleanup = time.Now()
				}
			}
		}
	}()
}

func (w *Worker) sweepAbandoned(ctx context.Context) {
	failed, err := w.storage.FailAbandoned(ctx, w.cfg.ClaimStaleAfter)
	if err != nil {
		w.logger.Error("Failed to sweep abandoned jobs",
			slog.String("error", err.Error()),
		)
		return
	}
	if failed > 0 {
		w.logger.Warn("Abandoned jobs failed",
			slog.Int64("count", failed),
		)
	}
}

func (w *Worker) cleanupOldJobs(ctx context.Context) {
	cutoff := time.Now().Add(-w.cfg.Cleanup.MaxAge)
	deleted, err := w.storage.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to clean up old jobs",
			slog.String("error", err.Error()),
		)
		return
	}
	if deleted > 0 {
		w.logger.Info("Old terminal jobs deleted",
			slog.Int64("count", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
}
