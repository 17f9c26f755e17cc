package engine

import (
	"context"
	"strings"
	"testing"
)

func noop(ctx context.Context, r Resource) error { return nil }

func TestDispatchTable_RegisterAndLookup(t *testing.T) {
	table := NewDispatchTable()

	called := false
	fn := func(ctx context.Context, r Resource) error {
		called = true
		return nil
	}

	if err := table.Register(ActionCreate, KindRole, fn); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, ok := table.Lookup(ActionCreate, KindRole)
	if !ok {
		t.Fatal("Expected entry for create/Role")
	}
	if err := got(context.Background(), res("a", 1)); err != nil {
		t.Fatalf("Operation failed: %v", err)
	}
	if !called {
		t.Error("Lookup returned a different function")
	}

	if _, ok := table.Lookup(ActionDelete, KindRole); ok {
		t.Error("Expected no entry for delete/Role")
	}
	if _, ok := table.Lookup(ActionCreate, KindHook); ok {
		t.Error("Expected no entry for create/Hook")
	}
}

func TestDispatchTable_RegisterErrors(t *testing.T) {
	table := NewDispatchTable()

	if err := table.Register(ActionCreate, KindRole, nil); err == nil {
		t.Error("Expected error for nil operation")
	}

	if err := table.Register(ActionCreate, KindRole, noop); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := table.Register(ActionCreate, KindRole, noop); err == nil {
		t.Error("Expected error for duplicate registration")
	}
}

func TestDispatchTable_Entries(t *testing.T) {
	table := NewDispatchTable()
	for _, kind := range []Kind{KindWorkerType, KindRole} {
		for _, action := range []Action{ActionDelete, ActionCreate, ActionUpdate} {
			if err := table.Register(action, kind, noop); err != nil {
				t.Fatalf("Register failed: %v", err)
			}
		}
	}

	var got []string
	for _, key := range table.Entries() {
		got = append(got, key.String())
	}

	want := []string{
		"create/AwsProvisionerWorkerType",
		"update/AwsProvisionerWorkerType",
		"delete/AwsProvisionerWorkerType",
		"create/Role",
		"update/Role",
		"delete/Role",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected entries %v, got %v", want, got)
	}

	kinds := table.Kinds()
	if len(kinds) != 2 || kinds[0] != KindWorkerType || kinds[1] != KindRole {
		t.Errorf("Unexpected kinds: %v", kinds)
	}
}

func TestDispatchTable_Validate(t *testing.T) {
	table := NewDispatchTable()
	for _, action := range Actions {
		if err := table.Register(action, KindRole, noop); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	if err := table.Register(ActionCreate, KindHook, noop); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := table.Validate(KindRole); err != nil {
		t.Errorf("Expected complete table for Role, got %v", err)
	}

	err := table.Validate(KindRole, KindHook)
	if err == nil {
		t.Fatal("Expected validation error for Hook")
	}
	for _, missing := range []string{"update/Hook", "delete/Hook"} {
		if !strings.Contains(err.Error(), missing) {
			t.Errorf("Expected error to mention %s, got %v", missing, err)
		}
	}
	if strings.Contains(err.Error(), "create/Hook") {
		t.Errorf("create/Hook is registered and should not be reported: %v", err)
	}
}
