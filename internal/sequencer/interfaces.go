package sequencer

import (
	"context"
	"time"

	"github.com/JakeFAU/flowfact-console/internal/backend"
)

// Invoker issues a single backend call.
type Invoker interface {
	Do(ctx context.Context, call backend.Call) (backend.Response, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Decider is consulted by the ask policy after a failed operation.
type Decider interface {
	ContinueAfter(ctx context.Context, failed Result, remaining []Operation) bool
}

// Observer is notified synchronously around each operation so a front-end can
// render progress as it happens.
type Observer interface {
	Started(op Operation)
	Finished(op Operation, res Result)
}

// NopObserver ignores notifications.
type NopObserver struct{}

// Started implements Observer.
func (NopObserver) Started(Operation) {}

// Finished implements Observer.
func (NopObserver) Finished(Operation, Result) {}
