package gateway

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	// StateClosed is normal operation; calls pass through.
	StateClosed CircuitState = iota
	// StateOpen rejects all calls immediately.
	StateOpen
	// StateHalfOpen allows a single probe call to test recovery.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker tracks recent failure history for one dependency and
// fails fast while the dependency is known to be down. State is process-local
// and resets to closed on restart.
type CircuitBreaker struct {
	dependency       string
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *slog.Logger

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(dependency string, failureThreshold int, recoveryTimeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		dependency:       dependency,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger,
		state:            StateClosed,
	}
}

// Allow reports whether a call may proceed. While open it returns a
// *CircuitOpenError until the recovery timeout elapses, then admits exactly
// one probe; concurrent calls during the probe are still rejected.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		elapsed := time.Since(b.openedAt)
		if elapsed < b.recoveryTimeout {
			return &CircuitOpenError{Dependency: b.dependency}
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		b.logger.Info("Circuit breaker half-open, probing",
			slog.String("dependency", b.dependency),
			slog.Duration("open_for", elapsed),
		)
		return nil

	default: // StateHalfOpen
		// One probe at a time.
		return &CircuitOpenError{Dependency: b.dependency}
	}
}

// RecordSuccess resets failure history. A successful half-open probe closes
// the circuit.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probeInFlight = false
		b.logger.Info("Circuit breaker closed",
			slog.String("dependency", b.dependency),
		)
	}
	b.consecutiveFailures = 0
}

// RecordFailure increments failure history. Reaching the threshold while
// closed, or any half-open probe failure, opens the circuit.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = time.Now()
		b.probeInFlight = false
		b.logger.Warn("Circuit breaker opened - probe failed",
			slog.String("dependency", b.dependency),
		)

	case StateClosed:
		if b.consecutiveFailures >= b.failureThreshold {
			b.state = StateOpen
			b.openedAt = time.Now()
			b.logger.Warn("Circuit breaker opened",
				slog.String("dependency", b.dependency),
				slog.Int("failures", b.consecutiveFailures),
				slog.Int("threshold", b.failureThreshold),
			)
		}
	}
}

// CancelProbe returns an admitted but never-executed probe slot. The circuit
// reopens without restarting the recovery clock, so the next caller is
// admitted as a fresh probe immediately.
func (b *CircuitBreaker) CancelProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probeInFlight {
		b.state = StateOpen
		b.probeInFlight = false
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
