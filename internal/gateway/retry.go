package gateway

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// retryableStatusCodes are transient server-busy / rate-limit signals.
var retryableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// RetryPolicy classifies errors and computes backoff delays for one
// dependency's per-call retries.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// Retryable reports whether the error is transient and worth retrying.
// Timeouts, network-level errors, and retryable status signals qualify;
// malformed-request, authorization, and not-found signals do not.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatusCodes[httpErr.StatusCode]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// NextDelay computes the backoff before the given zero-based attempt is
// retried. An explicit retry-after hint takes precedence; otherwise the
// delay grows exponentially from BaseBackoff with uniform jitter in
// [0, backoff/2] to avoid synchronized retry storms.
func (p RetryPolicy) NextDelay(attempt int, retryAfterHint time.Duration) time.Duration {
	if retryAfterHint > 0 {
		return retryAfterHint
	}

	base := p.BaseBackoff
	if base <= 0 {
		base = time.Second
	}

	backoff := base << uint(attempt)
	jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))
	return backoff + jitter
}

// retryAfterHint extracts an explicit retry-after hint from the error chain.
func retryAfterHint(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}
