package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Executor applies operations against the remote service one at a time.
//
// The remote service serializes some classes of change server-side and
// times out when many mutating requests queue up, so at most one call is in
// flight. The first failure stops the run: earlier operations stay applied
// and later ones are never attempted.
type Executor struct {
	table  *DispatchTable
	sinks  []Notifier
	logger zerolog.Logger
}

// NewExecutor creates an executor that resolves calls through table and
// reports every attempted operation to sinks.
func NewExecutor(table *DispatchTable, logger zerolog.Logger, sinks ...Notifier) *Executor {
	return &Executor{
		table:  table,
		sinks:  sinks,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// Apply executes ops in order. It returns nil when every operation succeeded,
// or a *RemoteOperationError for the first operation that failed.
func (e *Executor) Apply(ctx context.Context, ops []Operation) error {
	for i, op := range ops {
		if err := e.applyOne(ctx, op); err != nil {
			e.logger.Error().
				Err(err).
				Int("index", i).
				Int("remaining", len(ops)-i-1).
				Msg("Operation failed, stopping")
			return err
		}
	}
	return nil
}

func (e *Executor) applyOne(ctx context.Context, op Operation) error {
	r := op.Resource
	fn, ok := e.table.Lookup(op.Action, r.Kind())
	if !ok {
		return &RemoteOperationError{
			Action:     op.Action,
			Kind:       r.Kind(),
			ResourceID: r.ID(),
			Err:        fmt.Errorf("%w for %s/%s", ErrNoOperation, op.Action, r.Kind()),
		}
	}

	e.notify(ctx, op)

	start := time.Now()
	err := fn(ctx, r)
	duration := time.Since(start)

	if err != nil {
		err = &RemoteOperationError{
			Action:     op.Action,
			Kind:       r.Kind(),
			ResourceID: r.ID(),
			Err:        err,
		}
	} else {
		e.logger.Debug().
			Str("action", string(op.Action)).
			Str("resource_id", r.ID()).
			Dur("duration", duration).
			Msg("Operation applied")
	}

	e.observe(ctx, op, err, duration)
	return err
}

// notify calls every sink before the remote call. Sink failures never
// change the outcome of the run.
func (e *Executor) notify(ctx context.Context, op Operation) {
	for _, sink := range e.sinks {
		if err := e.safeNotify(ctx, sink, op); err != nil {
			e.logger.Warn().
				Err(err).
				Str("resource_id", op.Resource.ID()).
				Msg("Notification sink failed")
		}
	}
}

func (e *Executor) safeNotify(ctx context.Context, sink Notifier, op Operation) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notifier panic: %v", p)
		}
	}()
	return sink.Notify(ctx, op)
}

func (e *Executor) observe(ctx context.Context, op Operation, opErr error, duration time.Duration) {
	for _, sink := range e.sinks {
		observer, ok := sink.(OutcomeObserver)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Warn().
						Interface("panic", p).
						Str("resource_id", op.Resource.ID()).
						Msg("Outcome observer panicked")
				}
			}()
			observer.Observe(ctx, op, opErr, duration)
		}()
	}
}
