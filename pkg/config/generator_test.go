package config

import (
	"context"
	"testing"
	"time"
)

func TestGenerator_Run(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "repos.star", `
def repo_role(repo):
    return {
        "roleId": "repo:github.com/org/" + repo,
        "description": "CI for " + repo,
        "scopes": ["queue:route:index." + repo + ".*"],
    }

def repo_hook(repo):
    return {
        "hookGroupId": "project-" + repo,
        "hookId": "nightly",
        "name": repo + " nightly",
        "owner": owner,
        "schedule": ["0 0 0 * * *"],
        "task": {"provisionerId": "aws", "payload": {"repo": repo}},
    }

roles = [repo_role(r) for r in repos]
hooks = [repo_hook(r) for r in repos]
workerTypes = [{"workerType": "ci-" + r, "owner": owner, "maxCapacity": 4} for r in repos]
`)

	gen := NewGenerator(NewSchemaRegistry(), time.Second)
	pc, err := gen.Run(context.Background(), script, map[string]interface{}{
		"repos": []interface{}{"a", "b"},
		"owner": "releng@example.com",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", pc.Errors)
	}

	if len(pc.Roles) != 2 || len(pc.Hooks) != 2 || len(pc.WorkerTypes) != 2 {
		t.Fatalf("expected 2 of each kind, got %d roles, %d hooks, %d worker types",
			len(pc.Roles), len(pc.Hooks), len(pc.WorkerTypes))
	}
	if pc.Hooks[1].HookGroupID != "project-b" {
		t.Errorf("unexpected hook group: %s", pc.Hooks[1].HookGroupID)
	}
	if pc.WorkerTypes[0].MaxCapacity != 4 {
		t.Errorf("unexpected max capacity: %d", pc.WorkerTypes[0].MaxCapacity)
	}

	resources := pc.ToResources()
	if len(resources) != 6 {
		t.Fatalf("expected 6 resources, got %d", len(resources))
	}
	if resources[0].ID() != "Role=repo:github.com/org/a" {
		t.Errorf("unexpected first id: %s", resources[0].ID())
	}
}

func TestGenerator_InvalidEntries(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		script string
	}{
		{"not a list", `roles = {"roleId": "x"}`},
		{"schema violation", `roles = [{"scopes": ["a"]}]`},
		{"unknown field", `roles = [{"roleId": "x", "extra": 1}]`},
		{"struct validation", `workerTypes = [{"workerType": "w", "owner": "o", "minPrice": 2.0, "maxPrice": 1.0}]`},
	}

	gen := NewGenerator(NewSchemaRegistry(), time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "gen.star", tt.script)
			pc, err := gen.Run(context.Background(), path, nil)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if len(pc.Errors) == 0 {
				t.Error("expected entry errors")
			}
			if pc.Len() != 0 {
				t.Errorf("expected no decoded entries, got %d", pc.Len())
			}
		})
	}
}

func TestGenerator_ScriptFailure(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(NewSchemaRegistry(), time.Second)

	if _, err := gen.Run(context.Background(), writeFile(t, dir, "bad.star", `roles = [`), nil); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := gen.Run(context.Background(), dir+"/missing.star", nil); err == nil {
		t.Error("expected missing file error")
	}
}
