// Package gateway mediates every outbound call to an external, rate-limited,
// occasionally-failing dependency. Each call passes a per-dependency circuit
// breaker, a concurrency limiter, an enforced timeout, and a retry policy
// with exponential backoff and jitter.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DependencyConfig holds the per-dependency guard settings. Cheaper,
// faster-recovering services get shorter recovery timeouts; expensive ones
// get stricter thresholds and lower concurrency.
type DependencyConfig struct {
	MaxConcurrent    int           `yaml:"max_concurrent"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	BaseBackoff      time.Duration `yaml:"base_backoff"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout"`
}

func (c DependencyConfig) withDefaults() DependencyConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 90 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = c.CallTimeout
	}
	return c
}

// Operation is a zero-argument unit of work performing exactly one external
// call. It must honor ctx cancellation.
type Operation func(ctx context.Context) error

// Gateway is the single entry point for outbound calls. Breaker and limiter
// state are created lazily per dependency name and live for the process
// lifetime; they are not shared across worker instances.
type Gateway struct {
	configs map[string]DependencyConfig
	logger  *slog.Logger
	metrics *Metrics

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	limiters map[string]*Limiter
}

// New creates a gateway guarding the configured dependency names.
func New(configs map[string]DependencyConfig, logger *slog.Logger) *Gateway {
	normalized := make(map[string]DependencyConfig, len(configs))
	for name, cfg := range configs {
		normalized[name] = cfg.withDefaults()
	}

	return &Gateway{
		configs:  normalized,
		logger:   logger,
		metrics:  NewMetrics(),
		breakers: make(map[string]*CircuitBreaker),
		limiters: make(map[string]*Limiter),
	}
}

// Do executes op against the named dependency. Retryable failures are
// absorbed up to the retry limit; only the final classified error crosses
// this boundary. Calls to unconfigured dependency names pass through
// unguarded.
func (g *Gateway) Do(ctx context.Context, dependency string, op Operation) error {
	cfg, ok := g.configs[dependency]
	if !ok {
		return op(ctx)
	}

	breaker := g.breakerFor(dependency, cfg)
	limiter := g.limiterFor(dependency, cfg)
	policy := RetryPolicy{MaxRetries: cfg.MaxRetries, BaseBackoff: cfg.BaseBackoff}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// Re-checked each attempt so a breaker that opened mid-retry-loop
		// is honored.
		if err := breaker.Allow(); err != nil {
			g.metrics.Inc(dependency + ".rejected")
			return err
		}

		err := g.attemptCall(ctx, dependency, cfg, breaker, limiter, op)
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt >= cfg.MaxRetries || !policy.Retryable(err) {
			g.logger.Error("Gateway call failed",
				slog.String("dependency", dependency),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			return err
		}

		delay := policy.NextDelay(attempt, retryAfterHint(err))
		g.logger.Warn("Gateway call failed, retrying",
			slog.String("dependency", dependency),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// attemptCall runs one guarded attempt. The permit is released and the
// breaker sees an outcome on every exit, including an op that panics: the
// panic unwinds through the deferred handlers before reaching the caller's
// recovery, so a half-open probe cannot strand the breaker without a verdict.
func (g *Gateway) attemptCall(ctx context.Context, dependency string, cfg DependencyConfig, breaker *CircuitBreaker, limiter *Limiter, op Operation) error {
	if err := limiter.Acquire(ctx, cfg.AcquireTimeout); err != nil {
		g.metrics.Inc(dependency + ".limited")
		// The call never reached the dependency; hand the probe slot back
		// rather than counting this against it.
		breaker.CancelProbe()
		return err
	}
	defer limiter.Release()

	settled := false
	defer func() {
		if !settled {
			breaker.RecordFailure()
			g.metrics.Inc(dependency + ".failure")
		}
	}()

	start := time.Now()
	err := runWithTimeout(ctx, cfg.CallTimeout, op)
	settled = true

	g.metrics.Observe(dependency+".duration_ms", float64(time.Since(start).Milliseconds()))

	if err == nil {
		breaker.RecordSuccess()
		g.metrics.Inc(dependency + ".success")
		return nil
	}

	breaker.RecordFailure()
	g.metrics.Inc(dependency + ".failure")
	return err
}

// runWithTimeout runs op under an enforced per-call timeout. A timeout
// surfaces as a wrapped context.DeadlineExceeded and counts as a retryable
// failure.
func runWithTimeout(ctx context.Context, timeout time.Duration, op Operation) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(callCtx)
	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("call timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	return err
}

// CircuitStates returns the current breaker state per dependency, for
// health reporting.
func (g *Gateway) CircuitStates() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	states := make(map[string]string, len(g.configs))
	for name := range g.configs {
		if b, ok := g.breakers[name]; ok {
			states[name] = b.State().String()
		} else {
			states[name] = StateClosed.String()
		}
	}
	return states
}

// Metrics returns the gateway's metrics registry.
func (g *Gateway) Metrics() *Metrics {
	return g.metrics
}

func (g *Gateway) breakerFor(dependency string, cfg DependencyConfig) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[dependency]
	if !ok {
		b = NewCircuitBreaker(dependency, cfg.FailureThreshold, cfg.RecoveryTimeout, g.logger)
		g.breakers[dependency] = b
	}
	return b
}

func (g *Gateway) limiterFor(dependency string, cfg DependencyConfig) *Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[dependency]
	if !ok {
		l = NewLimiter(dependency, cfg.MaxConcurrent)
		g.limiters[dependency] = l
	}
	return l
}
