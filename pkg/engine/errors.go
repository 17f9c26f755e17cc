package engine

import (
	"errors"
	"fmt"
)

// ErrNoOperation is the cause recorded when the dispatch table has no entry
// for an operation's (action, kind) pair.
var ErrNoOperation = errors.New("no operation registered")

// DiffInputError reports a desired or observed source that produced two
// resources with the same id.
type DiffInputError struct {
	// Side is "desired" or "observed".
	Side string `json:"side"`

	// ID is the duplicated resource id.
	ID string `json:"id"`
}

// Error implements the error interface.
func (e *DiffInputError) Error() string {
	return fmt.Sprintf("duplicate resource id %s in %s resources", e.ID, e.Side)
}

// RemoteOperationError reports a failed create, update or delete call.
// The run that produced it stopped at this operation.
type RemoteOperationError struct {
	// Action is the action that was attempted.
	Action Action `json:"action"`

	// Kind is the kind of the resource.
	Kind Kind `json:"kind"`

	// ResourceID is the id of the resource the call was made for.
	ResourceID string `json:"resource_id"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("error while %s %s: %v", e.Action.Gerund(), e.ResourceID, e.Err)
}

// Unwrap returns the cause.
func (e *RemoteOperationError) Unwrap() error {
	return e.Err
}

// ErrorClass represents the classification of a remote failure.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure such as a timeout or
	// a 5xx response.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates rate limiting.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates the remote state changed underneath the request.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a failure that will recur until the input
	// or the remote configuration changes.
	ErrorClassPermanent ErrorClass = "permanent"

	// ErrorClassUnknown is reported for errors that carry no classification.
	ErrorClassUnknown ErrorClass = "unknown"
)

// EngineError is a classified error with context. The API client returns
// these for failed requests so that failures can be labelled in logs and
// metrics. Classification never causes a retry.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the resource ID that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code=%s)", msg, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, msg, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassThrottled,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConflict,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resourceID string) *EngineError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the class of the first EngineError in err's chain, or
// ErrorClassUnknown.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassUnknown
}

// CodeOf returns the code of the first EngineError in err's chain.
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	return ClassOf(err) == ErrorClassTransient
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	return ClassOf(err) == ErrorClassPermanent
}

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodePolicyDenied     = "POLICY_DENIED"
)
