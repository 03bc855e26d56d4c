package gateway

import (
	"context"
	"time"
)

// Limiter bounds the number of simultaneous in-flight calls to one
// dependency. It is a counting permit pool; Acquire suspends only the
// calling goroutine.
type Limiter struct {
	dependency string
	permits    chan struct{}
}

// NewLimiter creates a limiter with maxConcurrent permits.
func NewLimiter(dependency string, maxConcurrent int) *Limiter {
	return &Limiter{
		dependency: dependency,
		permits:    make(chan struct{}, maxConcurrent),
	}
}

// Acquire obtains a permit, waiting up to maxWait. It returns a
// *ConcurrencyLimitError when no permit frees in time, or the context error
// if ctx is canceled first.
func (l *Limiter) Acquire(ctx context.Context, maxWait time.Duration) error {
	// A dead caller gets no permit even when one is free.
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case l.permits <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case l.permits <- struct{}{}:
		return nil
	case <-timer.C:
		return &ConcurrencyLimitError{Dependency: l.dependency, Waited: maxWait}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool.
func (l *Limiter) Release() {
	select {
	case <-l.permits:
	default:
		// Release without a matching Acquire; nothing to return.
	}
}

// InFlight returns the number of permits currently held.
func (l *Limiter) InFlight() int {
	return len(l.permits)
}
