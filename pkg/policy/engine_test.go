package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ciadmin/ciadmin/pkg/engine"
	"github.com/ciadmin/ciadmin/pkg/resources"
)

func newTestEngine(t *testing.T, params Params) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop(), WithParams(params))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func roleOp(action engine.Action, id string, scopes ...string) engine.Operation {
	return engine.Operation{Action: action, Resource: resources.NewRole(id, "", scopes)}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t, Params{})

	var names []string
	for _, p := range eng.ListPolicies() {
		names = append(names, p.Name)
		if !p.Builtin {
			t.Errorf("Policy %s should be built-in", p.Name)
		}
	}

	if got := strings.Join(names, ","); got != "bulk-delete,protected-resources,star-scope" {
		t.Errorf("Unexpected built-in policies: %s", got)
	}
}

func TestEvaluatePlan_ProtectedResources(t *testing.T) {
	eng := newTestEngine(t, Params{Protected: []string{"Role=repo:github.com/org/infra"}})

	tests := []struct {
		name          string
		ops           []engine.Operation
		expectAllowed bool
	}{
		{
			name:          "delete of unprotected role",
			ops:           []engine.Operation{roleOp(engine.ActionDelete, "repo:github.com/org/app")},
			expectAllowed: true,
		},
		{
			name:          "update of protected role",
			ops:           []engine.Operation{roleOp(engine.ActionUpdate, "repo:github.com/org/infra", "a")},
			expectAllowed: true,
		},
		{
			name:          "delete of protected role",
			ops:           []engine.Operation{roleOp(engine.ActionDelete, "repo:github.com/org/infra")},
			expectAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluatePlan(context.Background(), tt.ops, false)
			if err != nil {
				t.Fatalf("EvaluatePlan failed: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Allowed = %v, want %v (violations: %v)", result.Allowed, tt.expectAllowed, result.Violations)
			}
			if !tt.expectAllowed {
				v := result.Violations[0]
				if v.Policy != "protected-resources" || v.Resource != "Role=repo:github.com/org/infra" {
					t.Errorf("Unexpected violation: %+v", v)
				}
				if v.Severity != SeverityCritical {
					t.Errorf("Expected critical severity, got %s", v.Severity)
				}
			}
		})
	}
}

func TestEvaluatePlan_BulkDelete(t *testing.T) {
	ops := []engine.Operation{
		roleOp(engine.ActionDelete, "repo:a"),
		roleOp(engine.ActionDelete, "repo:b"),
		roleOp(engine.ActionDelete, "repo:c"),
	}

	tests := []struct {
		name          string
		maxDeletes    int
		expectAllowed bool
	}{
		{"disabled", 0, true},
		{"at limit", 3, true},
		{"over limit", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t, Params{MaxDeletes: tt.maxDeletes})
			result, err := eng.EvaluatePlan(context.Background(), ops, false)
			if err != nil {
				t.Fatalf("EvaluatePlan failed: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.expectAllowed)
			}
		})
	}
}

func TestEvaluatePlan_StarScopeWarns(t *testing.T) {
	eng := newTestEngine(t, Params{})

	result, err := eng.EvaluatePlan(context.Background(), []engine.Operation{
		roleOp(engine.ActionCreate, "repo:admin", "*"),
	}, false)
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}

	if !result.Allowed {
		t.Errorf("Warnings must not block: %v", result.Violations)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Policy != "star-scope" {
		t.Errorf("Expected star-scope warning, got %v", result.Warnings)
	}
}

func TestAdmit(t *testing.T) {
	eng := newTestEngine(t, Params{Protected: []string{"Role="}})

	if err := eng.Admit(context.Background(), nil); err != nil {
		t.Errorf("Empty plan should be admitted: %v", err)
	}

	err := eng.Admit(context.Background(), []engine.Operation{roleOp(engine.ActionDelete, "x")})
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("Expected DeniedError, got %v", err)
	}
	if len(denied.Violations) != 1 {
		t.Errorf("Expected 1 violation, got %d", len(denied.Violations))
	}
	if !strings.Contains(err.Error(), "Role=x") {
		t.Errorf("Error should name the resource: %v", err)
	}
	if engine.CodeOf(err) != engine.ErrCodePolicyDenied || !engine.IsPermanent(err) {
		t.Errorf("Expected a permanent %s error, got code %q class %s",
			engine.ErrCodePolicyDenied, engine.CodeOf(err), engine.ClassOf(err))
	}
}

func TestAdmit_DryRun(t *testing.T) {
	eng := newTestEngine(t, Params{})
	dir := t.TempDir()
	writePolicy(t, dir, "live-only.rego", `package ciadmin.custom.liveonly

import rego.v1

deny contains "deletes must be rehearsed with a dry run first" if {
	not input.context.dry_run
	some op in input.plan.operations
	op.action == "delete"
}
`)
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}
	ops := []engine.Operation{roleOp(engine.ActionDelete, "x")}

	if err := eng.Admit(engine.ContextWithDryRun(context.Background()), ops); err != nil {
		t.Errorf("Dry run should be admitted: %v", err)
	}
	if err := eng.Admit(context.Background(), ops); err == nil {
		t.Error("Expected the live run to be denied")
	}
}

func TestLoadPolicies_Custom(t *testing.T) {
	eng := newTestEngine(t, Params{})
	dir := t.TempDir()
	writePolicy(t, dir, "team-owners.rego", customRego)
	writePolicy(t, dir, "no-updates.rego", `package ciadmin.custom.noupdates

import rego.v1

deny contains violation if {
	some op in input.plan.operations
	op.action == "update"
	violation := {"message": "updates are frozen", "resource": op.id}
}
`)

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	hook := resources.NewHook(resources.Hook{
		HookGroupID: "g",
		HookID:      "h",
		Name:        "n",
		Owner:       "someone@elsewhere.org",
		Task:        map[string]interface{}{},
	})
	result, err := eng.EvaluatePlan(context.Background(), []engine.Operation{
		{Action: engine.ActionCreate, Resource: hook},
		roleOp(engine.ActionUpdate, "repo:a", "s"),
	}, false)
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected update freeze to block the plan")
	}
	if len(result.Violations) != 1 || result.Violations[0].Resource != "Role=repo:a" {
		t.Errorf("Unexpected violations: %v", result.Violations)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Message != "Hook=g/h is not owned by a team" {
		t.Errorf("Unexpected warnings: %v", result.Warnings)
	}
}

func TestLoadPolicies_Errors(t *testing.T) {
	eng := newTestEngine(t, Params{})
	dir := t.TempDir()

	writePolicy(t, dir, "broken.rego", "package broken\n\ndeny contains x if {\n")
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err == nil {
		t.Error("Expected compile error")
	}
	if len(eng.ListPolicies()) != 3 {
		t.Errorf("A failed load must leave the policy set unchanged, got %d policies", len(eng.ListPolicies()))
	}

	shadowDir := t.TempDir()
	writePolicy(t, shadowDir, "bulk-delete.rego", "package shadow\n")
	if err := eng.LoadPolicies(context.Background(), []string{shadowDir}); err == nil {
		t.Error("Expected shadowing a built-in policy to fail")
	}
}

func TestReloadPolicies(t *testing.T) {
	eng := newTestEngine(t, Params{})
	dir := t.TempDir()
	path := writePolicy(t, dir, "custom.rego", "package custom.one\n")

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}
	if _, err := eng.GetPolicy("custom"); err != nil {
		t.Fatalf("Custom policy not loaded: %v", err)
	}

	if err := os.Rename(path, filepath.Join(dir, "renamed.rego")); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}
	if err := eng.ReloadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("ReloadPolicies failed: %v", err)
	}

	if _, err := eng.GetPolicy("custom"); err == nil {
		t.Error("Removed policy should be gone after reload")
	}
	if _, err := eng.GetPolicy("renamed"); err != nil {
		t.Errorf("Renamed policy should be loaded: %v", err)
	}
	if _, err := eng.GetPolicy("bulk-delete"); err != nil {
		t.Errorf("Built-in policies must survive reload: %v", err)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t, Params{Protected: []string{"Role="}})
	ops := []engine.Operation{roleOp(engine.ActionDelete, "x")}

	if err := eng.DisablePolicy("protected-resources"); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}
	result, err := eng.EvaluatePlan(context.Background(), ops, false)
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}
	if !result.Allowed {
		t.Error("Disabled policy should not block")
	}
	for _, name := range result.EvaluatedPolicies {
		if name == "protected-resources" {
			t.Error("Disabled policy should not be evaluated")
		}
	}

	if err := eng.EnablePolicy("protected-resources"); err != nil {
		t.Fatalf("EnablePolicy failed: %v", err)
	}
	result, _ = eng.EvaluatePlan(context.Background(), ops, false)
	if result.Allowed {
		t.Error("Re-enabled policy should block")
	}

	if err := eng.EnablePolicy("nope"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestWatch_ReplacesFilePolicies(t *testing.T) {
	eng := newTestEngine(t, Params{})
	dir := t.TempDir()
	path := writePolicy(t, dir, "freeze.rego", "package ciadmin.custom.freeze\n")
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 10)
	if err := eng.Watch(ctx, []string{dir}, func() { reloaded <- struct{}{} }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	ops := []engine.Operation{roleOp(engine.ActionCreate, "x")}
	if err := eng.Admit(context.Background(), ops); err != nil {
		t.Fatalf("Plan should be admitted before the change: %v", err)
	}

	if err := os.WriteFile(path, []byte(`package ciadmin.custom.freeze

import rego.v1

deny contains "changes are frozen" if {
	count(input.plan.operations) > 0
}
`), 0o644); err != nil {
		t.Fatalf("Failed to rewrite: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("No reload after change")
	}

	if err := eng.Admit(context.Background(), ops); err == nil {
		t.Error("Expected the reloaded policy to deny the plan")
	}
	if _, err := eng.GetPolicy("bulk-delete"); err != nil {
		t.Errorf("Built-in policies must survive a reload: %v", err)
	}
}
