package policy

import (
	"bytes"
	"encoding/json"
	"time"
)

// Params are the values built-in policies read from data.ciadmin.params.
type Params struct {
	// MaxDeletes is the largest number of deletions a plan may contain.
	// Zero disables the check.
	MaxDeletes int `json:"max_deletes"`

	// Protected lists id prefixes that must never be deleted.
	Protected []string `json:"protected"`
}

// data returns the params as a storage document. Values go through JSON so
// numbers have the representation OPA expects.
func (p Params) data() map[string]interface{} {
	protected := p.Protected
	if protected == nil {
		protected = []string{}
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"ciadmin": map[string]interface{}{
			"params": map[string]interface{}{
				"max_deletes": p.MaxDeletes,
				"protected":   protected,
			},
		},
	})

	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	_ = dec.Decode(&doc)
	return doc
}

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		protectedResourcesPolicy(),
		bulkDeletePolicy(),
		starScopePolicy(),
	}
}

// protectedResourcesPolicy blocks deletion of protected resources.
func protectedResourcesPolicy() Policy {
	return Policy{
		Name:        "protected-resources",
		Description: "Prevents deletion of resources under a protected id prefix",
		Severity:    SeverityCritical,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"safety", "delete"},
		CreatedAt:   time.Now(),
		Rego: `package ciadmin.policies.protected

import rego.v1

deny contains violation if {
	some op in input.plan.operations
	op.action == "delete"
	some prefix in data.ciadmin.params.protected
	startswith(op.id, prefix)

	violation := {
		"message": sprintf("%s is protected by prefix %q and cannot be deleted", [op.id, prefix]),
		"resource": op.id,
	}
}`,
	}
}

// bulkDeletePolicy blocks plans that delete too much at once, which usually
// means a source failed to load or the managed prefixes are wrong.
func bulkDeletePolicy() Policy {
	return Policy{
		Name:        "bulk-delete",
		Description: "Blocks plans deleting more resources than policies.maxDeletes",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"safety", "delete"},
		CreatedAt:   time.Now(),
		Rego: `package ciadmin.policies.bulkdelete

import rego.v1

deny contains violation if {
	limit := data.ciadmin.params.max_deletes
	limit > 0
	input.plan.summary.to_delete > limit

	violation := {
		"message": sprintf("plan deletes %d resources, more than the limit of %d", [input.plan.summary.to_delete, limit]),
	}
}`,
	}
}

// starScopePolicy warns about roles that grant every scope.
func starScopePolicy() Policy {
	return Policy{
		Name:        "star-scope",
		Description: "Warns when a role is given the * scope",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"scopes"},
		CreatedAt:   time.Now(),
		Rego: `package ciadmin.policies.starscope

import rego.v1

deny contains violation if {
	some op in input.plan.operations
	op.kind == "Role"
	op.action != "delete"
	some scope in op.resource.scopes
	scope == "*"

	violation := {
		"message": sprintf("role %s grants every scope", [op.resource.roleId]),
		"resource": op.id,
	}
}`,
	}
}
