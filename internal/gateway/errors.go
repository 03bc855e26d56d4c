package gateway

import (
	"fmt"
	"time"
)

// CircuitOpenError is returned when a dependency's circuit breaker is open
// and the call is rejected without a network attempt.
type CircuitOpenError struct {
	Dependency string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s: call rejected", e.Dependency)
}

// ConcurrencyLimitError is returned when no permit became available within
// the acquire bound. The caller may retry later.
type ConcurrencyLimitError struct {
	Dependency string
	Waited     time.Duration
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("concurrency limit reached for %s: no permit after %s", e.Dependency, e.Waited)
}

// HTTPError carries a dependency's HTTP status signal through retry
// classification. RetryAfter is non-zero when the response included an
// explicit Retry-After hint.
type HTTPError struct {
	Dependency string
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Dependency, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Dependency, e.StatusCode)
}
