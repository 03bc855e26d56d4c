package domain

import (
	"errors"
)

// Job status values as exposed to API clients. The worker owns all
// transitions; the API only ever writes the initial pending state.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// DefaultMaxAttempts bounds how many times a job may be claimed when the
// submitter does not say otherwise
const DefaultMaxAttempts = 3

var (
	ErrJobNotFound = errors.New("job not found")
)

// ValidStatus reports whether s is a known job status, for list filtering
func ValidStatus(s string) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
