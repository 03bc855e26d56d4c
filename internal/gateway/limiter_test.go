package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BoundsInFlight(t *testing.T) {
	const maxConcurrent = 3
	l := NewLimiter("openai", maxConcurrent)

	var inFlight, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			require.NoError(t, l.Acquire(context.Background(), time.Second))
			defer l.Release()

			n := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(maxConcurrent))
	assert.Equal(t, 0, l.InFlight())
}

func TestLimiter_AcquireTimesOut(t *testing.T) {
	l := NewLimiter("playwright", 1)
	require.NoError(t, l.Acquire(context.Background(), time.Second))

	start := time.Now()
	err := l.Acquire(context.Background(), 30*time.Millisecond)
	require.Error(t, err)

	var limitErr *ConcurrencyLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "playwright", limitErr.Dependency)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	// A released permit can be acquired again.
	l.Release()
	assert.NoError(t, l.Acquire(context.Background(), time.Second))
}

func TestLimiter_CanceledContextGetsNoPermit(t *testing.T) {
	l := NewLimiter("openai", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, l.InFlight(), "no permit should be held for a dead caller")
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewLimiter("firecrawl", 1)
	require.NoError(t, l.Acquire(context.Background(), time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := l.Acquire(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
