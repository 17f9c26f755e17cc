package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ciadmin/ciadmin/pkg/engine"
	"github.com/ciadmin/ciadmin/pkg/resources"
)

// ParsedConfig is the desired state read from CUE files and generators.
type ParsedConfig struct {
	// Roles, Hooks and WorkerTypes are the decoded entries, before
	// normalization.
	Roles       []resources.Role       `json:"roles"`
	Hooks       []resources.Hook       `json:"hooks"`
	WorkerTypes []resources.WorkerType `json:"workerTypes"`

	// SourceFiles are the files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists any validation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Merge appends the entries and errors of other to pc.
func (pc *ParsedConfig) Merge(other *ParsedConfig) {
	pc.Roles = append(pc.Roles, other.Roles...)
	pc.Hooks = append(pc.Hooks, other.Hooks...)
	pc.WorkerTypes = append(pc.WorkerTypes, other.WorkerTypes...)
	pc.SourceFiles = append(pc.SourceFiles, other.SourceFiles...)
	pc.Errors = append(pc.Errors, other.Errors...)
}

// Len returns the number of entries.
func (pc *ParsedConfig) Len() int {
	return len(pc.Roles) + len(pc.Hooks) + len(pc.WorkerTypes)
}

// ToResources normalizes every entry into an engine.Resource.
func (pc *ParsedConfig) ToResources() []engine.Resource {
	out := make([]engine.Resource, 0, pc.Len())
	for _, r := range pc.Roles {
		out = append(out, resources.NewRole(r.RoleID, r.Description, r.Scopes))
	}
	for _, h := range pc.Hooks {
		out = append(out, resources.NewHook(h))
	}
	for _, w := range pc.WorkerTypes {
		out = append(out, resources.NewWorkerType(w))
	}
	return out
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the CUE path to the error (e.g., "roles.ci.scopes").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`

	// Err is the typed cause, when there is one.
	Err error `json:"-"`
}

// String renders the error as "file:line:col: path: message".
func (ve ValidationError) String() string {
	var b strings.Builder
	if ve.File != "" {
		b.WriteString(ve.File)
		if ve.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", ve.Line, ve.Column)
		}
		b.WriteString(": ")
	}
	if ve.Path != "" {
		b.WriteString(ve.Path)
		b.WriteString(": ")
	}
	b.WriteString(ve.Message)
	return b.String()
}

// LoadError is returned when the desired state could not be loaded cleanly.
type LoadError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0].String()
	}
	lines := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		lines = append(lines, "  "+ve.String())
	}
	return fmt.Sprintf("invalid configuration (%d errors):\n%s", len(e.Errors), strings.Join(lines, "\n"))
}

// Unwrap returns the typed causes of the entries, so errors.As can reach
// for example an *engine.DiffInputError.
func (e *LoadError) Unwrap() []error {
	var causes []error
	for _, ve := range e.Errors {
		if ve.Err != nil {
			causes = append(causes, ve.Err)
		}
	}
	return causes
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output holds the script's public globals.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
