package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus represents the overall status of a reconciliation run.
type RunStatus string

const (
	// RunStatusPending indicates the plan has been computed but nothing was applied yet.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates operations are being applied.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every operation was applied.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the run stopped at a failing operation.
	RunStatusFailed RunStatus = "failed"

	// RunStatusDenied indicates the plan gate rejected the plan.
	RunStatusDenied RunStatus = "denied"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusDenied
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded,
		RunStatusFailed, RunStatusDenied:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// OperationStatus is the outcome of a single attempted operation.
type OperationStatus string

const (
	// OperationStatusStarted indicates the remote call was issued and has not returned.
	OperationStatusStarted OperationStatus = "started"

	// OperationStatusSucceeded indicates the remote call returned without error.
	OperationStatusSucceeded OperationStatus = "succeeded"

	// OperationStatusFailed indicates the remote call failed.
	OperationStatusFailed OperationStatus = "failed"
)

// Validate checks if the operation status is valid.
func (s OperationStatus) Validate() error {
	switch s {
	case OperationStatusStarted, OperationStatusSucceeded, OperationStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}

// EventType represents the type of event in a run timeline.
type EventType string

const (
	// EventTypeRunStarted indicates a run has started applying.
	EventTypeRunStarted EventType = "run_started"

	// EventTypeRunCompleted indicates every operation of a run was applied.
	EventTypeRunCompleted EventType = "run_completed"

	// EventTypeRunFailed indicates a run stopped at a failing operation.
	EventTypeRunFailed EventType = "run_failed"

	// EventTypePlanDenied indicates the plan gate rejected a plan.
	EventTypePlanDenied EventType = "plan_denied"

	// EventTypeOperationStarted indicates a remote call is about to be made.
	EventTypeOperationStarted EventType = "operation_started"

	// EventTypeOperationSucceeded indicates a remote call succeeded.
	EventTypeOperationSucceeded EventType = "operation_succeeded"

	// EventTypeOperationFailed indicates a remote call failed.
	EventTypeOperationFailed EventType = "operation_failed"
)

// Severity returns the severity level of the event type.
func (e EventType) Severity() string {
	switch e {
	case EventTypeRunFailed, EventTypeOperationFailed:
		return "error"
	case EventTypePlanDenied:
		return "warning"
	default:
		return "info"
	}
}
