package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ciadmin/ciadmin/pkg/engine"
	"github.com/ciadmin/ciadmin/pkg/resources"
)

var _ engine.ResourceSource = (*DesiredSource)(nil)

func newTestSource(t *testing.T, settings *Settings, prefixes ...string) *DesiredSource {
	t.Helper()
	return NewDesiredSource(settings, resources.NewManaged(prefixes...), zerolog.Nop())
}

func TestDesiredSource_Resources(t *testing.T) {
	dir := t.TempDir()
	cueFile := writeFile(t, dir, "config/roles.cue", `
roles: "repo:github.com/org/a": {
	description: "CI"
	scopes: ["queue:b", "queue:*", "queue:a"]
}
hooks: "project-releng/nightly": {
	name:  "nightly"
	owner: "releng@example.com"
	task:  {provisionerId: "aws"}
}
`)
	gen := writeFile(t, dir, "gen.star", `
workerTypes = [{"workerType": "ci-" + r, "owner": "releng"} for r in repos]
`)

	settings := &Settings{
		Sources: []string{cueFile},
		Generators: []GeneratorSettings{{
			Script: gen,
			Input:  map[string]interface{}{"repos": []interface{}{"a"}},
		}},
	}
	src := newTestSource(t, settings, "Role=repo:", "Hook=project-", "AwsProvisionerWorkerType=ci-")

	got, err := src.Resources(context.Background())
	if err != nil {
		t.Fatalf("Resources failed: %v", err)
	}

	coll, err := engine.NewCollection("desired", got)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}
	want := []string{
		"AwsProvisionerWorkerType=ci-a",
		"Hook=project-releng/nightly",
		"Role=repo:github.com/org/a",
	}
	if strings.Join(coll.IDs(), ",") != strings.Join(want, ",") {
		t.Errorf("unexpected ids: %v", coll.IDs())
	}

	role := coll["Role=repo:github.com/org/a"].(*resources.Role)
	if role.Description != resources.DescriptionPrefix+"CI" {
		t.Errorf("description not prefixed: %q", role.Description)
	}
	if strings.Join(role.Scopes, ",") != "queue:*" {
		t.Errorf("scopes not normalized: %v", role.Scopes)
	}
}

func TestDesiredSource_RejectsUnmanaged(t *testing.T) {
	dir := t.TempDir()
	cueFile := writeFile(t, dir, "roles.cue", `
roles: "repo:github.com/org/a": scopes: ["a"]
roles: "login-identity:someone": scopes: ["b"]
`)

	src := newTestSource(t, &Settings{Sources: []string{cueFile}}, "Role=repo:")

	_, err := src.Resources(context.Background())
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if len(loadErr.Errors) != 1 || loadErr.Errors[0].Path != "Role=login-identity:someone" {
		t.Errorf("unexpected errors: %v", loadErr.Errors)
	}
}

func TestDesiredSource_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	cueFile := writeFile(t, dir, "roles.cue", `roles: "repo:a": scopes: ["a"]`)
	gen := writeFile(t, dir, "gen.star", `roles = [{"roleId": "repo:a", "scopes": ["b"]}]`)

	src := newTestSource(t, &Settings{
		Sources:    []string{cueFile},
		Generators: []GeneratorSettings{{Script: gen}},
	}, "Role=")

	_, err := src.Resources(context.Background())
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !strings.Contains(loadErr.Error(), "Role=repo:a") {
		t.Errorf("expected duplicate id in error, got %q", loadErr.Error())
	}

	var dupErr *engine.DiffInputError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected the DiffInputError to be reachable, got %v", err)
	}
	if dupErr.Side != "desired" || dupErr.ID != "Role=repo:a" {
		t.Errorf("unexpected duplicate: %+v", dupErr)
	}
}

func TestDesiredSource_EntryErrors(t *testing.T) {
	dir := t.TempDir()
	cueFile := writeFile(t, dir, "hooks.cue", `hooks: "g/h": {name: "n", task: {}}`)

	src := newTestSource(t, &Settings{Sources: []string{cueFile}}, "Hook=")

	_, err := src.Resources(context.Background())
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestDesiredSource_GeneratorFailure(t *testing.T) {
	dir := t.TempDir()
	gen := writeFile(t, dir, "gen.star", `fail("boom")`)

	src := newTestSource(t, &Settings{Generators: []GeneratorSettings{{Script: gen}}}, "Role=")

	_, err := src.Resources(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		t.Errorf("script failures are not entry errors: %v", err)
	}
}

func TestDesiredSource_Empty(t *testing.T) {
	src := newTestSource(t, &Settings{}, "Role=")

	got, err := src.Resources(context.Background())
	if err != nil {
		t.Fatalf("Resources failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no resources, got %d", len(got))
	}
}
