package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

// Event is a timeline entry of a run.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type engine.EventType `json:"type"`

	// RunID is the associated run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// ResourceID is the associated resource ID, if applicable.
	ResourceID string `json:"resource_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers, either on the publishing
// goroutine or from a buffered background goroutine. Delivery order always
// matches publish order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Level == "" {
		event.Level = event.Type.Severity()
	}

	if ep.config.EnableAsync {
		select {
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(run *engine.Run) error {
	return ep.Publish(Event{
		Type:    engine.EventTypeRunStarted,
		RunID:   run.ID,
		Message: fmt.Sprintf("Run %s started with %d operations", run.ID, run.Summary.Total()),
		Data: map[string]interface{}{
			"plan_id":   run.PlanID,
			"to_create": run.Summary.ToCreate,
			"to_update": run.Summary.ToUpdate,
			"to_delete": run.Summary.ToDelete,
		},
	})
}

// PublishRunFinished publishes the terminal event of a run: completed,
// failed or denied.
func (ep *EventPublisher) PublishRunFinished(run *engine.Run) error {
	event := Event{
		RunID: run.ID,
		Data: map[string]interface{}{
			"status":    string(run.Status),
			"attempted": run.Attempted,
			"succeeded": run.Succeeded,
			"duration":  run.Duration().Seconds(),
		},
	}

	switch run.Status {
	case engine.RunStatusSucceeded:
		event.Type = engine.EventTypeRunCompleted
		event.Message = fmt.Sprintf("Run %s applied %d operations", run.ID, run.Succeeded)
	case engine.RunStatusDenied:
		event.Type = engine.EventTypePlanDenied
		event.Message = fmt.Sprintf("Run %s denied: %s", run.ID, run.Error)
	default:
		event.Type = engine.EventTypeRunFailed
		event.Message = fmt.Sprintf("Run %s failed: %s", run.ID, run.Error)
	}

	return ep.Publish(event)
}

// PublishOperationStarted publishes an operation started event.
func (ep *EventPublisher) PublishOperationStarted(runID string, op engine.Operation) error {
	return ep.Publish(Event{
		Type:       engine.EventTypeOperationStarted,
		RunID:      runID,
		ResourceID: op.Resource.ID(),
		Message:    fmt.Sprintf("%s %s", op.Action.Gerund(), op.Resource.ID()),
		Data: map[string]interface{}{
			"action": string(op.Action),
			"kind":   string(op.Resource.Kind()),
		},
	})
}

// PublishOperationFinished publishes the outcome of an operation.
func (ep *EventPublisher) PublishOperationFinished(runID string, op engine.Operation, err error, duration time.Duration) error {
	event := Event{
		Type:       engine.EventTypeOperationSucceeded,
		RunID:      runID,
		ResourceID: op.Resource.ID(),
		Message:    op.String(),
		Data: map[string]interface{}{
			"action":   string(op.Action),
			"kind":     string(op.Resource.Kind()),
			"duration": duration.Seconds(),
		},
	}
	if err != nil {
		event.Type = engine.EventTypeOperationFailed
		event.Message = err.Error()
		event.Data["error_class"] = string(engine.ClassOf(err))
	}
	return ep.Publish(event)
}

// Subscribe adds a new event subscriber. A nil filter receives every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers buffered events until shutdown, then drains the
// buffer.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		"info":    0,
		"warning": 1,
		"error":   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}
