package gateway

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker("openai", 3, time.Minute, testLogger())

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateClosed, b.State())

	require.NoError(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	err := b.Allow()
	require.Error(t, err)
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "openai", openErr.Dependency)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker("openai", 3, time.Minute, testLogger())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Two more failures should not reach the threshold of three.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestCircuitBreaker_SingleProbeAfterRecovery(t *testing.T) {
	b := NewCircuitBreaker("perplexity", 1, 20*time.Millisecond, testLogger())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.Error(t, b.Allow())

	time.Sleep(25 * time.Millisecond)

	// First call after recovery is the probe.
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	// Concurrent calls during the probe are still rejected.
	var openErr *CircuitOpenError
	require.ErrorAs(t, b.Allow(), &openErr)
	require.ErrorAs(t, b.Allow(), &openErr)
}

func TestCircuitBreaker_ProbeOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		succeed   bool
		wantState CircuitState
	}{
		{name: "probe success closes circuit", succeed: true, wantState: StateClosed},
		{name: "probe failure reopens circuit", succeed: false, wantState: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewCircuitBreaker("firecrawl", 1, 10*time.Millisecond, testLogger())
			b.RecordFailure()
			time.Sleep(15 * time.Millisecond)

			require.NoError(t, b.Allow())
			require.Equal(t, StateHalfOpen, b.State())

			if tt.succeed {
				b.RecordSuccess()
			} else {
				b.RecordFailure()
			}

			assert.Equal(t, tt.wantState, b.State())

			if tt.succeed {
				// Closed again: calls pass and a fresh failure budget applies.
				assert.NoError(t, b.Allow())
			} else {
				// Reopened: openedAt was reset, so calls fail fast again.
				var openErr *CircuitOpenError
				assert.ErrorAs(t, b.Allow(), &openErr)
			}
		})
	}
}

func TestCircuitBreaker_CancelProbeFreesSlot(t *testing.T) {
	b := NewCircuitBreaker("perplexity", 1, 10*time.Millisecond, testLogger())

	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)

	require.NoError(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	// The probe never ran; the recovery clock is not restarted, so the very
	// next caller becomes the probe.
	b.CancelProbe()
	assert.Equal(t, StateOpen, b.State())

	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	// A no-op outside an in-flight probe.
	b.RecordSuccess()
	b.CancelProbe()
	assert.Equal(t, StateClosed, b.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}
