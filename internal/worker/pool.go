package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// spawnClaimLoops spawns N claim loops based on concurrency configuration
func (w *Worker) spawnClaimLoops(ctx context.Context) {
	w.logger.Info("Spawning claim loops",
		slog.Int("concurrency", w.cfg.Concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.claimLoop(ctx, i)
	}
}

// claimLoop claims and processes jobs until shutdown. After each processed
// job it immediately tries again; when the queue is empty the poll interval
// grows by half up to the idle maximum, and a wake notification resets it.
func (w *Worker) claimLoop(ctx context.Context, loopNum int) {
	defer w.wg.Done()

	loopName := fmt.Sprintf("%s-%d", w.workerID, loopNum)
	w.logger.Info("Claim loop started",
		slog.String("loop", loopName),
	)

	interval := w.cfg.PollInterval

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Claim loop stopping",
				slog.String("loop", loopName),
			)
			return
		case <-ctx.Done():
			w.logger.Info("Claim loop stopping - context canceled",
				slog.String("loop", loopName),
			)
			return
		default:
		}

		worked, err := w.claimAndProcess(ctx)
		if err != nil {
			w.logger.Error("Claim failed",
				slog.String("loop", loopName),
				slog.String("error", err.Error()),
			)
		}

		if worked {
			interval = w.cfg.PollInterval
			continue
		}

		timer := time.NewTimer(interval)
		select {
		case <-w.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-w.wake:
			timer.Stop()
			interval = w.cfg.PollInterval
		case <-timer.C:
			interval = nextIdleInterval(interval, w.cfg.MaxIdleInterval)
		}
	}
}

// nextIdleInterval backs the poll interval off by 1.5x, capped at max
func nextIdleInterval(current, max time.Duration) time.Duration {
	next := current + current/2
	if max > 0 && next > max {
		next = max
	}
	return next
}
