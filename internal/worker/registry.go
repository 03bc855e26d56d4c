package worker

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/heirclark17/resume-ai-backend/internal/worker/domain"
)

// ProgressFunc reports handler progress. Percent is clamped to [0,100] and
// never regresses in the store.
type ProgressFunc func(percent int, message string)

// HandlerFunc executes one job. It returns the result payload to persist, or
// an error that the processor classifies into a stable error kind. The
// context carries the per-job timeout; handlers must respect it.
type HandlerFunc func(ctx context.Context, job *domain.Job, progress ProgressFunc) (json.RawMessage, error)

// Registry maps job types to their handlers. Registration happens once at
// startup, before Start, so lookups need no locking.
type Registry struct {
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a job type to its handler, replacing any previous binding
func (r *Registry) Register(jobType string, handler HandlerFunc) {
	r.handlers[jobType] = handler
}

// Get returns the handler for a job type, or false if none is registered
func (r *Registry) Get(jobType string) (HandlerFunc, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}

// JobTypes returns the registered job types in sorted order
func (r *Registry) JobTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
