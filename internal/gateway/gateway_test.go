package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway(configs map[string]DependencyConfig) *Gateway {
	return New(configs, testLogger())
}

func TestGateway_SuccessPassesThrough(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"openai": {MaxConcurrent: 2, CallTimeout: time.Second},
	})

	var calls int
	err := g.Do(context.Background(), "openai", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 1, g.Metrics().Snapshot().Counters["openai.success"])
}

func TestGateway_UnknownDependencyUnguarded(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{})

	var calls int
	err := g.Do(context.Background(), "mystery", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGateway_OpenCircuitFailsFastWithoutCalling(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"firecrawl": {
			MaxConcurrent:    2,
			CallTimeout:      time.Second,
			FailureThreshold: 2,
			RecoveryTimeout:  time.Minute,
		},
	})

	boom := errors.New("scrape failed")
	for i := 0; i < 2; i++ {
		_ = g.Do(context.Background(), "firecrawl", func(ctx context.Context) error {
			return boom
		})
	}

	var calls int
	err := g.Do(context.Background(), "firecrawl", func(ctx context.Context) error {
		calls++
		return nil
	})

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, 0, calls, "operation must not run while the circuit is open")
	assert.EqualValues(t, 1, g.Metrics().Snapshot().Counters["firecrawl.rejected"])
}

func TestGateway_RetriesTransientThenSucceeds(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"openai": {
			MaxConcurrent:    2,
			CallTimeout:      time.Second,
			MaxRetries:       2,
			FailureThreshold: 10,
			BaseBackoff:      time.Millisecond,
		},
	})

	var calls int
	err := g.Do(context.Background(), "openai", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPError{Dependency: "openai", StatusCode: 503}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	snap := g.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.Counters["openai.success"])
	assert.EqualValues(t, 2, snap.Counters["openai.failure"])
}

func TestGateway_TerminalErrorNotRetried(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"openai": {
			MaxConcurrent:    2,
			CallTimeout:      time.Second,
			MaxRetries:       3,
			FailureThreshold: 10,
			BaseBackoff:      time.Millisecond,
		},
	})

	var calls int
	err := g.Do(context.Background(), "openai", func(ctx context.Context) error {
		calls++
		return &HTTPError{Dependency: "openai", StatusCode: 401}
	})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 401, httpErr.StatusCode)
	assert.Equal(t, 1, calls, "terminal errors must not be retried")
}

func TestGateway_TimeoutIsRetryable(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"perplexity": {
			MaxConcurrent:    2,
			CallTimeout:      20 * time.Millisecond,
			MaxRetries:       1,
			FailureThreshold: 10,
			BaseBackoff:      time.Millisecond,
		},
	})

	var calls int
	err := g.Do(context.Background(), "perplexity", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls, "timeout should consume one attempt and be retried")
}

func TestGateway_AttemptsExhaustedReturnsLastError(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"openai": {
			MaxConcurrent:    2,
			CallTimeout:      time.Second,
			MaxRetries:       2,
			FailureThreshold: 10,
			BaseBackoff:      time.Millisecond,
		},
	})

	var calls int
	err := g.Do(context.Background(), "openai", func(ctx context.Context) error {
		calls++
		return &HTTPError{Dependency: "openai", StatusCode: 429}
	})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 429, httpErr.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestGateway_ConcurrencyBound(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"playwright": {
			MaxConcurrent:  1,
			CallTimeout:    time.Second,
			AcquireTimeout: 2 * time.Second,
		},
	})

	var inFlight, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), "playwright", func(ctx context.Context) error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt64(&peak), "at most one call in flight")
}

func TestGateway_AcquireTimeoutRejects(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"playwright": {
			MaxConcurrent:  1,
			CallTimeout:    time.Second,
			AcquireTimeout: 20 * time.Millisecond,
		},
	})

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = g.Do(context.Background(), "playwright", func(ctx context.Context) error {
			<-release
			return nil
		})
	}()

	// Give the holder time to take the only permit.
	time.Sleep(10 * time.Millisecond)

	err := g.Do(context.Background(), "playwright", func(ctx context.Context) error {
		return nil
	})

	var limitErr *ConcurrencyLimitError
	require.ErrorAs(t, err, &limitErr)

	close(release)
	<-done
}

func TestGateway_PanicReleasesPermit(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"playwright": {
			MaxConcurrent:  1,
			CallTimeout:    time.Second,
			AcquireTimeout: 50 * time.Millisecond,
		},
	})

	func() {
		defer func() {
			require.NotNil(t, recover(), "panic should escape the gateway")
		}()
		_ = g.Do(context.Background(), "playwright", func(ctx context.Context) error {
			panic("render crashed")
		})
	}()

	var calls int
	err := g.Do(context.Background(), "playwright", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err, "permit must be released when the operation panics")
	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 1, g.Metrics().Snapshot().Counters["playwright.failure"])
}

func TestGateway_PanickedProbeReopensCircuit(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"firecrawl": {
			MaxConcurrent:    1,
			CallTimeout:      time.Second,
			FailureThreshold: 1,
			RecoveryTimeout:  20 * time.Millisecond,
		},
	})

	_ = g.Do(context.Background(), "firecrawl", func(ctx context.Context) error {
		return &HTTPError{Dependency: "firecrawl", StatusCode: 503}
	})
	require.Equal(t, "open", g.CircuitStates()["firecrawl"])

	time.Sleep(30 * time.Millisecond)

	func() {
		defer func() {
			require.NotNil(t, recover(), "panic should escape the gateway")
		}()
		_ = g.Do(context.Background(), "firecrawl", func(ctx context.Context) error {
			panic("probe crashed")
		})
	}()

	assert.Equal(t, "open", g.CircuitStates()["firecrawl"],
		"a panicking probe must count as a failed probe, not wedge the breaker half-open")

	// The dependency recovers; the next probe must still be admitted.
	time.Sleep(30 * time.Millisecond)

	var calls int
	err := g.Do(context.Background(), "firecrawl", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "closed", g.CircuitStates()["firecrawl"])
}

func TestGateway_CircuitStates(t *testing.T) {
	g := testGateway(map[string]DependencyConfig{
		"openai":    {FailureThreshold: 1, RecoveryTimeout: time.Minute},
		"firecrawl": {},
	})

	_ = g.Do(context.Background(), "openai", func(ctx context.Context) error {
		return &HTTPError{Dependency: "openai", StatusCode: 500}
	})

	states := g.CircuitStates()
	assert.Equal(t, "open", states["openai"])
	assert.Equal(t, "closed", states["firecrawl"])
}
