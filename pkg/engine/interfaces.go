package engine

import (
	"context"
	"time"
)

// ResourceSource produces one side of a reconciliation.
//
// Desired sources load configuration; observed sources list the live
// service. Both must derive ids with the same rules.
type ResourceSource interface {
	// Resources returns the resources of this source. Ids must be unique.
	Resources(ctx context.Context) ([]Resource, error)
}

// ResourceSourceFunc adapts a function to ResourceSource.
type ResourceSourceFunc func(ctx context.Context) ([]Resource, error)

// Resources calls f.
func (f ResourceSourceFunc) Resources(ctx context.Context) ([]Resource, error) {
	return f(ctx)
}

// Notifier is told about every operation right before its remote call is
// made. A returned error is logged and otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, op Operation) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, op Operation) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, op Operation) error {
	return f(ctx, op)
}

// OutcomeObserver is an optional extension of Notifier. Sinks implementing
// it also receive the outcome of each attempted operation: err is nil on
// success or the RemoteOperationError that stopped the run.
type OutcomeObserver interface {
	Observe(ctx context.Context, op Operation, err error, duration time.Duration)
}

// PlanGate decides whether a computed plan may be applied.
type PlanGate interface {
	// Admit returns a non-nil error when ops must not be applied.
	Admit(ctx context.Context, ops []Operation) error
}
