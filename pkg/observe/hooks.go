// Package observe fans out optic application events to registered hooks.
package observe

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event describes one optic application.
type Event struct {
	ID         string
	Op         string
	Path       string
	PlanID     string
	CacheHit   bool
	Foci       int
	Duration   time.Duration
	Err        error
	OccurredAt time.Time
}

// Hook receives normalized application events.
type Hook interface {
	Notify(event Event) error
}

// HookFunc allows plain functions to satisfy Hook.
type HookFunc func(event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(event Event) error {
	if fn == nil {
		return nil
	}
	return fn(event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []Hook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes the event and forwards it to all hooks, returning a
// joined error if any fail. Missing IDs and timestamps are filled in so
// every hook sees a complete event.
func (h Hooks) Notify(event Event) error {
	if len(h) == 0 {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
