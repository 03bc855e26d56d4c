package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "connection reset" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

var _ net.Error = (*fakeNetError)(nil)

func TestRetryPolicy_Retryable(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseBackoff: time.Second}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{
			name: "wrapped timeout",
			err:  fmt.Errorf("call timed out after 5s: %w", context.DeadlineExceeded),
			want: true,
		},
		{name: "network error", err: &fakeNetError{}, want: true},
		{name: "rate limited", err: &HTTPError{Dependency: "openai", StatusCode: 429}, want: true},
		{name: "server error", err: &HTTPError{Dependency: "openai", StatusCode: 500}, want: true},
		{name: "bad gateway", err: &HTTPError{Dependency: "openai", StatusCode: 502}, want: true},
		{name: "unavailable", err: &HTTPError{Dependency: "openai", StatusCode: 503}, want: true},
		{name: "gateway timeout", err: &HTTPError{Dependency: "openai", StatusCode: 504}, want: true},
		{name: "bad request", err: &HTTPError{Dependency: "openai", StatusCode: 400}, want: false},
		{name: "unauthorized", err: &HTTPError{Dependency: "openai", StatusCode: 401}, want: false},
		{name: "forbidden", err: &HTTPError{Dependency: "openai", StatusCode: 403}, want: false},
		{name: "not found", err: &HTTPError{Dependency: "openai", StatusCode: 404}, want: false},
		{name: "plain error", err: errors.New("parse failure"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Retryable(tt.err))
		})
	}
}

func TestRetryPolicy_NextDelayGrowsExponentially(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 4, BaseBackoff: 100 * time.Millisecond}

	for attempt := 0; attempt < 4; attempt++ {
		backoff := policy.BaseBackoff << uint(attempt)

		delay := policy.NextDelay(attempt, 0)
		assert.GreaterOrEqual(t, delay, backoff, "attempt %d below base backoff", attempt)
		assert.LessOrEqual(t, delay, backoff+backoff/2, "attempt %d above jitter ceiling", attempt)
	}
}

func TestRetryPolicy_RetryAfterHintWins(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseBackoff: 100 * time.Millisecond}

	assert.Equal(t, 7*time.Second, policy.NextDelay(0, 7*time.Second))
	assert.Equal(t, 7*time.Second, policy.NextDelay(3, 7*time.Second))
}

func TestRetryAfterHint(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &HTTPError{
		Dependency: "perplexity",
		StatusCode: 429,
		RetryAfter: 12 * time.Second,
	})
	assert.Equal(t, 12*time.Second, retryAfterHint(err))
	assert.Equal(t, time.Duration(0), retryAfterHint(errors.New("no hint")))
}
