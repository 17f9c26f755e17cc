package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// block a plan.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the plan.
	SeverityError Severity = "error"

	// SeverityCritical blocks the plan.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity deny a plan.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations are read from the
	// package's deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies compiled into the binary.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Resource is the resource id the violation is about, if any.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// String renders the violation on one line.
func (v PolicyViolation) String() string {
	if v.Resource != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", v.Severity, v.Policy, v.Message, v.Resource)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Policy, v.Message)
}

// PolicyResult represents the result of evaluating a plan.
type PolicyResult struct {
	// Allowed is false when any blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// Warnings lists non-blocking violations and evaluation failures.
	Warnings []PolicyViolation `json:"warnings,omitempty"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// PolicyInput is the document bound to input during evaluation.
type PolicyInput struct {
	// Plan is the plan being evaluated.
	Plan *PlanInput `json:"plan"`

	// Context provides additional evaluation context.
	Context *PolicyContext `json:"context"`
}

// PlanInput describes a plan to Rego.
type PlanInput struct {
	Operations []OperationInput `json:"operations"`
	Summary    engine.Summary   `json:"summary"`
}

// OperationInput describes one operation to Rego. Resource is the
// resource's JSON form (for example roleId and scopes for a role).
type OperationInput struct {
	Action   string      `json:"action"`
	Kind     string      `json:"kind"`
	ID       string      `json:"id"`
	Resource interface{} `json:"resource"`
}

// PolicyContext provides context information for policy evaluation.
type PolicyContext struct {
	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// DryRun indicates if this is a dry-run evaluation.
	DryRun bool `json:"dry_run"`
}

// NewPolicyInput builds the evaluation input for ops.
func NewPolicyInput(ops []engine.Operation, dryRun bool) *PolicyInput {
	in := &PolicyInput{
		Plan: &PlanInput{
			Operations: make([]OperationInput, 0, len(ops)),
			Summary:    engine.Summarize(ops),
		},
		Context: &PolicyContext{
			Timestamp: time.Now(),
			DryRun:    dryRun,
		},
	}
	for _, op := range ops {
		in.Plan.Operations = append(in.Plan.Operations, OperationInput{
			Action:   op.Action.String(),
			Kind:     op.Resource.Kind().String(),
			ID:       op.Resource.ID(),
			Resource: op.Resource,
		})
	}
	return in
}

// DeniedError is returned by Engine.Admit when a plan has blocking
// violations.
type DeniedError struct {
	Violations []PolicyViolation
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, v.String())
	}
	return fmt.Sprintf("%d policy violation(s): %s", len(e.Violations), strings.Join(lines, "; "))
}

// Unwrap classifies the denial as a permanent engine error with code
// engine.ErrCodePolicyDenied, so engine.CodeOf works on wrapped denials.
func (e *DeniedError) Unwrap() error {
	return engine.NewPermanentError("plan denied by policy", nil).WithCode(engine.ErrCodePolicyDenied)
}

// PolicyBundle represents a collection of related policies.
type PolicyBundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`
}
