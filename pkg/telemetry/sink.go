package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

// Sink reports run progress to logs, metrics, spans and events. Register it
// with engine.NewExecutor; it implements engine.Notifier,
// engine.OutcomeObserver and engine.RunObserver.
type Sink struct {
	tel    *Telemetry
	logger *Logger

	mu      sync.Mutex
	runs    map[string]runSpans
	orphans trace.Span
}

type runSpans struct {
	ctx context.Context
	run trace.Span
	op  trace.Span
}

var (
	_ engine.Notifier        = (*Sink)(nil)
	_ engine.OutcomeObserver = (*Sink)(nil)
	_ engine.RunObserver     = (*Sink)(nil)
)

// NewSink creates a sink reporting to tel.
func NewSink(tel *Telemetry) *Sink {
	return &Sink{
		tel:    tel,
		logger: tel.Logger.NewComponentLogger("sink"),
		runs:   make(map[string]runSpans),
	}
}

// RunStarted opens the run span and counts the run.
func (s *Sink) RunStarted(ctx context.Context, run *engine.Run) {
	spanCtx, span := s.tel.Tracer.StartRunSpan(ctx, run)

	s.mu.Lock()
	s.runs[run.ID] = runSpans{ctx: spanCtx, run: span}
	s.mu.Unlock()

	s.tel.Metrics.RecordRunStarted()
	s.publish(s.tel.Events.PublishRunStarted(run))

	s.logger.WithRunID(run.ID).Info().
		Int("create", run.Summary.ToCreate).
		Int("update", run.Summary.ToUpdate).
		Int("delete", run.Summary.ToDelete).
		Msg("Run started")
}

// RunFinished closes the run span and records the terminal status.
func (s *Sink) RunFinished(ctx context.Context, run *engine.Run) {
	s.mu.Lock()
	spans, ok := s.runs[run.ID]
	delete(s.runs, run.ID)
	s.mu.Unlock()

	if ok {
		span := spans.run
		span.SetAttributes(AttrRunStatus.String(string(run.Status)))
		if run.Status == engine.RunStatusSucceeded {
			RecordSuccess(span)
		} else {
			span.SetStatus(codes.Error, run.Error)
		}
		span.End()
	}

	s.tel.Metrics.RecordRunCompleted(run.Status, run.Duration())
	s.publish(s.tel.Events.PublishRunFinished(run))

	logger := s.logger.WithRunID(run.ID)
	switch run.Status {
	case engine.RunStatusSucceeded:
		logger.Info().Int("succeeded", run.Succeeded).Dur("duration", run.Duration()).Msg("Run finished")
	case engine.RunStatusDenied:
		logger.Warn().Str("reason", run.Error).Msg("Run denied")
	default:
		logger.Error().
			Int("attempted", run.Attempted).
			Int("succeeded", run.Succeeded).
			Str("error", run.Error).
			Msg("Run finished with failure")
	}
}

// Notify opens the span of the operation about to run.
func (s *Sink) Notify(ctx context.Context, op engine.Operation) error {
	runID := engine.RunIDFromContext(ctx)

	s.mu.Lock()
	spans, ok := s.runs[runID]
	parent := ctx
	if ok {
		parent = spans.ctx
	}
	_, span := s.tel.Tracer.StartOperationSpan(parent, op)
	if ok {
		spans.op = span
		s.runs[runID] = spans
	} else {
		s.orphans = span
	}
	s.mu.Unlock()

	s.logger.WithRunID(runID).Debug().
		Str("action", string(op.Action)).
		Str("resource_id", op.Resource.ID()).
		Msg("Operation starting")

	return s.tel.Events.PublishOperationStarted(runID, op)
}

// Observe closes the operation span and records the outcome.
func (s *Sink) Observe(ctx context.Context, op engine.Operation, err error, duration time.Duration) {
	runID := engine.RunIDFromContext(ctx)

	s.mu.Lock()
	var span trace.Span
	if spans, ok := s.runs[runID]; ok {
		span = spans.op
		spans.op = nil
		s.runs[runID] = spans
	} else {
		span = s.orphans
		s.orphans = nil
	}
	s.mu.Unlock()

	status := engine.OperationStatusSucceeded
	if err != nil {
		status = engine.OperationStatusFailed
		s.tel.Metrics.RecordError(engine.ClassOf(err))
	}
	s.tel.Metrics.RecordOperation(op, status, duration)

	if span != nil {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	s.publish(s.tel.Events.PublishOperationFinished(runID, op, err, duration))
}

func (s *Sink) publish(err error) {
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish event")
	}
}
