package criteria

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/medalcase/medalcase/medalcase/database/models"
)

// ErrNoHandler signals an unregistered criteria type. Callers treat it
// as skip-and-count, never as a failure to escalate.
var ErrNoHandler = errors.New("no handler registered for criteria type")

// Result is what a handler reports for one profile×definition pair.
type Result struct {
	Achieved bool
	Progress int
}

// Cache is an opaque shared scratch for one evaluation batch. Handlers
// use it to avoid recomputing the same expensive aggregate when many
// definitions of one criteria type are evaluated for the same profile.
type Cache map[string]interface{}

// HandlerFunc evaluates one criteria type. Handlers are pure with
// respect to their inputs: the same profile state yields the same
// result.
type HandlerFunc func(ctx context.Context, profileID int64, def *models.Achievement, shared Cache) (Result, error)

// Registry maps criteria-type keys to handlers. Registration happens
// at process start; adding a criteria type requires only a Register
// call before first use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

func (r *Registry) Register(criteriaType string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[criteriaType] = fn
}

func (r *Registry) Get(criteriaType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[criteriaType]
	return fn, ok
}

// Types lists the registered criteria types, for diagnostics.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Evaluate dispatches to the registered handler. An unregistered type
// returns ErrNoHandler.
func (r *Registry) Evaluate(ctx context.Context, criteriaType string, profileID int64, def *models.Achievement, shared Cache) (Result, error) {
	fn, ok := r.Get(criteriaType)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoHandler, criteriaType)
	}
	return fn(ctx, profileID, def, shared)
}
