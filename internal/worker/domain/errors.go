package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrClaimConflict is returned when a worker tries to mutate a job it no
	// longer owns (claim expired and re-claimed elsewhere). Callers treat it
	// as a no-op, never a crash.
	ErrClaimConflict = errors.New("job no longer claimed by this worker")

	// ErrAlreadyTerminal is returned when a terminal write targets a job
	// already in the other terminal state
	ErrAlreadyTerminal = errors.New("job already in a different terminal state")
)
