package stores

import (
	"context"
	"time"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// RunRecord is the persisted form of one reconciliation run.
type RunRecord struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	Status      string     `json:"status"`
	ToCreate    int        `json:"to_create"`
	ToUpdate    int        `json:"to_update"`
	ToDelete    int        `json:"to_delete"`
	Attempted   int        `json:"attempted"`
	Succeeded   int        `json:"succeeded"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OperationRecord is one attempted remote call within a run. Sequence is
// the 1-based position in the plan.
type OperationRecord struct {
	RunID       string     `json:"run_id"`
	Sequence    int        `json:"sequence"`
	Action      string     `json:"action"`
	Kind        string     `json:"kind"`
	ResourceID  string     `json:"resource_id"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms"`
}

// Event represents an append-only log event
type Event struct {
	ID         int64      `json:"id"`
	RunID      *string    `json:"run_id,omitempty"`
	Type       string     `json:"type"`
	Level      EventLevel `json:"level"`
	ResourceID *string    `json:"resource_id,omitempty"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Store defines the interface for the run history. A negative limit
// returns every row.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	SaveRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, error)
	DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error)

	// Operation records
	CreateOperation(ctx context.Context, op *OperationRecord) error
	FinishOperation(ctx context.Context, op *OperationRecord) error
	ListOperations(ctx context.Context, runID string) ([]*OperationRecord, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
