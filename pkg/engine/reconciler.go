package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Plan is the result of diffing desired against observed state.
type Plan struct {
	// ID uniquely identifies the plan.
	ID string `json:"id"`

	// Operations are the remote calls required to converge, in execution order.
	Operations []Operation `json:"-"`

	// Summary counts Operations by action.
	Summary Summary `json:"summary"`

	// Desired and Observed are the number of resources on each side.
	Desired  int `json:"desired"`
	Observed int `json:"observed"`

	// Current holds the observed resources by id, so that updates can be
	// shown against what they replace.
	Current Collection `json:"-"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`
}

// Empty reports whether applying the plan would make no remote calls.
func (p *Plan) Empty() bool {
	return len(p.Operations) == 0
}

// Run is one attempt to apply a plan.
type Run struct {
	ID          string    `json:"id"`
	PlanID      string    `json:"plan_id"`
	Status      RunStatus `json:"status"`
	Summary     Summary   `json:"summary"`
	Attempted   int       `json:"attempted"`
	Succeeded   int       `json:"succeeded"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunObserver is an optional extension of Notifier. Sinks implementing it
// are told when a run starts and when it reaches a terminal status.
type RunObserver interface {
	RunStarted(ctx context.Context, run *Run)
	RunFinished(ctx context.Context, run *Run)
}

type runIDKey struct{}

// ContextWithRunID returns a copy of ctx carrying runID.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

type dryRunKey struct{}

// ContextWithDryRun marks ctx as belonging to a dry run: the plan is
// admitted or denied but never applied.
func ContextWithDryRun(ctx context.Context) context.Context {
	return context.WithValue(ctx, dryRunKey{}, true)
}

// IsDryRun reports whether ctx was marked by ContextWithDryRun.
func IsDryRun(ctx context.Context) bool {
	dryRun, _ := ctx.Value(dryRunKey{}).(bool)
	return dryRun
}

// Reconciler computes plans from two resource sources and applies them.
type Reconciler struct {
	desired  ResourceSource
	observed ResourceSource
	gate     PlanGate
	executor *Executor
	logger   zerolog.Logger
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithPlanGate installs a gate that must admit each plan before it is applied.
func WithPlanGate(gate PlanGate) ReconcilerOption {
	return func(r *Reconciler) {
		r.gate = gate
	}
}

// NewReconciler creates a reconciler.
func NewReconciler(desired, observed ResourceSource, executor *Executor, logger zerolog.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		desired:  desired,
		observed: observed,
		executor: executor,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan loads both sides and diffs them. Nothing is changed remotely.
func (r *Reconciler) Plan(ctx context.Context) (*Plan, error) {
	desired, err := r.desired.Resources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load desired resources: %w", err)
	}

	observed, err := r.observed.Resources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load observed resources: %w", err)
	}

	ops, err := Diff(desired, observed)
	if err != nil {
		return nil, err
	}
	current, err := NewCollection("observed", observed)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:         uuid.New().String(),
		Operations: ops,
		Summary:    Summarize(ops),
		Desired:    len(desired),
		Observed:   len(observed),
		Current:    current,
		CreatedAt:  r.now(),
	}

	r.logger.Info().
		Str("plan_id", plan.ID).
		Int("desired", plan.Desired).
		Int("observed", plan.Observed).
		Int("create", plan.Summary.ToCreate).
		Int("update", plan.Summary.ToUpdate).
		Int("delete", plan.Summary.ToDelete).
		Msg("Plan computed")

	return plan, nil
}

// Admit runs the plan gate, if any.
func (r *Reconciler) Admit(ctx context.Context, plan *Plan) error {
	if r.gate == nil {
		return nil
	}
	return r.gate.Admit(ctx, plan.Operations)
}

// Apply admits and executes plan. The returned run is never nil; its status
// tells whether the plan was denied, failed part way, or fully applied.
func (r *Reconciler) Apply(ctx context.Context, plan *Plan) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		PlanID:    plan.ID,
		Status:    RunStatusPending,
		Summary:   plan.Summary,
		StartedAt: r.now(),
	}
	ctx = ContextWithRunID(ctx, run.ID)
	logger := r.logger.With().Str("run_id", run.ID).Logger()

	if err := r.Admit(ctx, plan); err != nil {
		run.Status = RunStatusDenied
		run.Error = err.Error()
		run.CompletedAt = r.now()
		logger.Warn().Err(err).Msg("Plan denied")
		r.runFinished(ctx, run)
		return run, fmt.Errorf("plan denied: %w", err)
	}

	run.Status = RunStatusRunning
	r.runStarted(ctx, run)

	err := r.executor.Apply(ctx, plan.Operations)
	run.CompletedAt = r.now()

	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
		run.Attempted = failedIndex(plan.Operations, err) + 1
		run.Succeeded = run.Attempted - 1
		logger.Error().
			Err(err).
			Int("succeeded", run.Succeeded).
			Int("total", len(plan.Operations)).
			Msg("Run failed")
		r.runFinished(ctx, run)
		return run, err
	}

	run.Status = RunStatusSucceeded
	run.Attempted = len(plan.Operations)
	run.Succeeded = len(plan.Operations)
	logger.Info().
		Int("operations", run.Succeeded).
		Dur("duration", run.Duration()).
		Msg("Run succeeded")
	r.runFinished(ctx, run)
	return run, nil
}

// Reconcile computes a plan and applies it.
func (r *Reconciler) Reconcile(ctx context.Context) (*Plan, *Run, error) {
	plan, err := r.Plan(ctx)
	if err != nil {
		return nil, nil, err
	}
	run, err := r.Apply(ctx, plan)
	return plan, run, err
}

func (r *Reconciler) runStarted(ctx context.Context, run *Run) {
	r.eachRunObserver(run, "RunStarted", func(o RunObserver) { o.RunStarted(ctx, run) })
}

func (r *Reconciler) runFinished(ctx context.Context, run *Run) {
	r.eachRunObserver(run, "RunFinished", func(o RunObserver) { o.RunFinished(ctx, run) })
}

// eachRunObserver calls fn for every sink implementing RunObserver. A
// panicking observer is logged and skipped; it never changes the run.
func (r *Reconciler) eachRunObserver(run *Run, callback string, fn func(RunObserver)) {
	for _, sink := range r.executor.sinks {
		o, ok := sink.(RunObserver)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Warn().
						Interface("panic", p).
						Str("run_id", run.ID).
						Str("callback", callback).
						Msg("Run observer panicked")
				}
			}()
			fn(o)
		}()
	}
}

// failedIndex returns the position of the operation named by err, or the
// last index when err does not identify one.
func failedIndex(ops []Operation, err error) int {
	var opErr *RemoteOperationError
	if errors.As(err, &opErr) {
		for i, op := range ops {
			if op.Action == opErr.Action && op.Resource.ID() == opErr.ResourceID {
				return i
			}
		}
	}
	return len(ops) - 1
}
