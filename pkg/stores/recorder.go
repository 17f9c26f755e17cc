package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

// Recorder writes the run history to a Store. Register it as an executor
// sink; it implements engine.Notifier, engine.OutcomeObserver and
// engine.RunObserver. Operations outside a run (no run id in the context)
// are not recorded.
type Recorder struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sequence map[string]int
}

var (
	_ engine.Notifier        = (*Recorder)(nil)
	_ engine.OutcomeObserver = (*Recorder)(nil)
	_ engine.RunObserver     = (*Recorder)(nil)
)

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		logger:   logger.With().Str("component", "recorder").Logger(),
		now:      time.Now,
		sequence: make(map[string]int),
	}
}

// RunStarted saves the run and a run_started event.
func (r *Recorder) RunStarted(ctx context.Context, run *engine.Run) {
	if err := r.store.SaveRun(ctx, toRunRecord(run)); err != nil {
		r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run start")
		return
	}
	r.appendEvent(ctx, run.ID, engine.EventTypeRunStarted, "",
		fmt.Sprintf("applying %d operations", run.Summary.Total()))
}

// RunFinished saves the final state of the run and its terminal event.
func (r *Recorder) RunFinished(ctx context.Context, run *engine.Run) {
	r.mu.Lock()
	delete(r.sequence, run.ID)
	r.mu.Unlock()

	if err := r.store.SaveRun(ctx, toRunRecord(run)); err != nil {
		r.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run result")
		return
	}

	var eventType engine.EventType
	var message string
	switch run.Status {
	case engine.RunStatusSucceeded:
		eventType = engine.EventTypeRunCompleted
		message = fmt.Sprintf("applied %d operations", run.Succeeded)
	case engine.RunStatusDenied:
		eventType = engine.EventTypePlanDenied
		message = run.Error
	default:
		eventType = engine.EventTypeRunFailed
		message = run.Error
	}
	r.appendEvent(ctx, run.ID, eventType, "", message)
}

// Notify records the operation as started.
func (r *Recorder) Notify(ctx context.Context, op engine.Operation) error {
	runID := engine.RunIDFromContext(ctx)
	if runID == "" {
		return nil
	}

	r.mu.Lock()
	r.sequence[runID]++
	seq := r.sequence[runID]
	r.mu.Unlock()

	record := &OperationRecord{
		RunID:      runID,
		Sequence:   seq,
		Action:     string(op.Action),
		Kind:       string(op.Resource.Kind()),
		ResourceID: op.Resource.ID(),
		Status:     string(engine.OperationStatusStarted),
		StartedAt:  r.now(),
	}
	if err := r.store.CreateOperation(ctx, record); err != nil {
		return err
	}

	r.appendEvent(ctx, runID, engine.EventTypeOperationStarted, op.Resource.ID(), op.Action.Gerund())
	return nil
}

// Observe records the outcome of the operation last passed to Notify.
func (r *Recorder) Observe(ctx context.Context, op engine.Operation, opErr error, duration time.Duration) {
	runID := engine.RunIDFromContext(ctx)
	if runID == "" {
		return
	}

	r.mu.Lock()
	seq := r.sequence[runID]
	r.mu.Unlock()

	completed := r.now()
	record := &OperationRecord{
		RunID:       runID,
		Sequence:    seq,
		Status:      string(engine.OperationStatusSucceeded),
		CompletedAt: &completed,
		DurationMs:  duration.Milliseconds(),
	}
	eventType := engine.EventTypeOperationSucceeded
	message := op.String()
	if opErr != nil {
		msg := opErr.Error()
		record.Status = string(engine.OperationStatusFailed)
		record.Error = &msg
		eventType = engine.EventTypeOperationFailed
		message = msg
	}

	if err := r.store.FinishOperation(ctx, record); err != nil {
		r.logger.Warn().Err(err).Str("resource_id", op.Resource.ID()).Msg("Failed to record operation outcome")
		return
	}
	r.appendEvent(ctx, runID, eventType, op.Resource.ID(), message)
}

func (r *Recorder) appendEvent(ctx context.Context, runID string, eventType engine.EventType, resourceID, message string) {
	event := &Event{
		RunID:     &runID,
		Type:      string(eventType),
		Level:     EventLevel(eventType.Severity()),
		Message:   message,
		Timestamp: r.now(),
	}
	if resourceID != "" {
		event.ResourceID = &resourceID
	}
	if err := r.store.AppendEvent(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to append event")
	}
}

func toRunRecord(run *engine.Run) *RunRecord {
	record := &RunRecord{
		ID:        run.ID,
		PlanID:    run.PlanID,
		Status:    string(run.Status),
		ToCreate:  run.Summary.ToCreate,
		ToUpdate:  run.Summary.ToUpdate,
		ToDelete:  run.Summary.ToDelete,
		Attempted: run.Attempted,
		Succeeded: run.Succeeded,
		StartedAt: run.StartedAt,
	}
	if run.Error != "" {
		msg := run.Error
		record.Error = &msg
	}
	if !run.CompletedAt.IsZero() {
		completed := run.CompletedAt
		record.CompletedAt = &completed
	}
	return record
}
