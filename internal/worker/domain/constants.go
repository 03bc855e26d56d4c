package domain

// Job status values. A job is pending until atomically claimed, processing
// while a worker owns it, and completed or failed once terminal.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Error kinds written to failed jobs. Pollers use the kind to decide whether
// a retry could succeed.
const (
	ErrKindTimeout     = "timeout"
	ErrKindCircuitOpen = "circuit_open"
	ErrKindRateLimited = "rate_limited"
	ErrKindDependency  = "dependency"
	ErrKindTerminal    = "terminal"
	ErrKindInternal    = "internal"
	ErrKindAbandoned   = "abandoned"
	ErrKindNoHandler   = "no_handler"
)

// TransientKind reports whether a failed job with this error kind could
// succeed if resubmitted.
func TransientKind(kind string) bool {
	switch kind {
	case ErrKindTimeout, ErrKindCircuitOpen, ErrKindRateLimited, ErrKindDependency, ErrKindAbandoned:
		return true
	default:
		return false
	}
}
