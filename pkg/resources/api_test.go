package resources

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ciadmin/ciadmin/pkg/client"
	"github.com/ciadmin/ciadmin/pkg/engine"
)

// fakeAPI is an in-memory RemoteAPI that records mutating calls.
type fakeAPI struct {
	roles       []client.Role
	hookGroups  map[string][]client.Hook
	workerTypes map[string]client.WorkerType

	calls   []string
	gets    []string
	listErr error
}

func (f *fakeAPI) record(call string) error {
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeAPI) ListRoles(ctx context.Context) ([]client.Role, error) {
	return f.roles, f.listErr
}

func (f *fakeAPI) CreateRole(ctx context.Context, roleID string, role client.Role) error {
	return f.record("CreateRole " + roleID + " " + strings.Join(role.Scopes, ","))
}

func (f *fakeAPI) UpdateRole(ctx context.Context, roleID string, role client.Role) error {
	return f.record("UpdateRole " + roleID)
}

func (f *fakeAPI) DeleteRole(ctx context.Context, roleID string) error {
	return f.record("DeleteRole " + roleID)
}

func (f *fakeAPI) ListHookGroups(ctx context.Context) ([]string, error) {
	var groups []string
	for g := range f.hookGroups {
		groups = append(groups, g)
	}
	return groups, nil
}

func (f *fakeAPI) ListHooks(ctx context.Context, group string) ([]client.Hook, error) {
	return f.hookGroups[group], nil
}

func (f *fakeAPI) CreateHook(ctx context.Context, group, id string, hook client.Hook) error {
	return f.record("CreateHook " + group + "/" + id + " " + hook.Metadata.Name)
}

func (f *fakeAPI) UpdateHook(ctx context.Context, group, id string, hook client.Hook) error {
	return f.record("UpdateHook " + group + "/" + id)
}

func (f *fakeAPI) RemoveHook(ctx context.Context, group, id string) error {
	return f.record("RemoveHook " + group + "/" + id)
}

func (f *fakeAPI) ListWorkerTypes(ctx context.Context) ([]string, error) {
	var names []string
	for n := range f.workerTypes {
		names = append(names, n)
	}
	return names, nil
}

func (f *fakeAPI) GetWorkerType(ctx context.Context, name string) (*client.WorkerType, error) {
	f.gets = append(f.gets, name)
	wt, ok := f.workerTypes[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return &wt, nil
}

func (f *fakeAPI) CreateWorkerType(ctx context.Context, name string, wt client.WorkerType) error {
	return f.record("CreateWorkerType " + name)
}

func (f *fakeAPI) UpdateWorkerType(ctx context.Context, name string, wt client.WorkerType) error {
	return f.record("UpdateWorkerType " + name)
}

func (f *fakeAPI) RemoveWorkerType(ctx context.Context, name string) error {
	return f.record("RemoveWorkerType " + name)
}

func TestNewDispatchTable_CoversEveryKind(t *testing.T) {
	table, err := NewDispatchTable(&fakeAPI{})
	if err != nil {
		t.Fatalf("NewDispatchTable failed: %v", err)
	}

	if got := len(table.Entries()); got != len(Kinds)*len(engine.Actions) {
		t.Errorf("Expected %d entries, got %d", len(Kinds)*len(engine.Actions), got)
	}
	if err := table.Validate(Kinds...); err != nil {
		t.Errorf("Table incomplete: %v", err)
	}
}

func TestNewDispatchTable_Calls(t *testing.T) {
	api := &fakeAPI{}
	table, err := NewDispatchTable(api)
	if err != nil {
		t.Fatalf("NewDispatchTable failed: %v", err)
	}

	role := NewRole("r1", "", []string{"s2", "s1"})
	hook := simpleHook()
	wt := NewWorkerType(WorkerType{Name: "w1", Owner: "o"})

	ops := []engine.Operation{
		{Action: engine.ActionCreate, Resource: role},
		{Action: engine.ActionUpdate, Resource: role},
		{Action: engine.ActionDelete, Resource: role},
		{Action: engine.ActionCreate, Resource: hook},
		{Action: engine.ActionUpdate, Resource: hook},
		{Action: engine.ActionDelete, Resource: hook},
		{Action: engine.ActionCreate, Resource: wt},
		{Action: engine.ActionUpdate, Resource: wt},
		{Action: engine.ActionDelete, Resource: wt},
	}

	exec := engine.NewExecutor(table, zerolog.Nop())
	if err := exec.Apply(context.Background(), ops); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := []string{
		"CreateRole r1 s1,s2",
		"UpdateRole r1",
		"DeleteRole r1",
		"CreateHook garbage/test-hook test",
		"UpdateHook garbage/test-hook",
		"RemoveHook garbage/test-hook",
		"CreateWorkerType w1",
		"UpdateWorkerType w1",
		"RemoveWorkerType w1",
	}
	if strings.Join(api.calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("Unexpected calls:\n%s", strings.Join(api.calls, "\n"))
	}
}

// mislabelled claims to be a role but is not a *Role.
type mislabelled struct{ *Hook }

func (m mislabelled) Kind() engine.Kind { return engine.KindRole }

func TestNewDispatchTable_WrongType(t *testing.T) {
	table, err := NewDispatchTable(&fakeAPI{})
	if err != nil {
		t.Fatalf("NewDispatchTable failed: %v", err)
	}

	fn, ok := table.Lookup(engine.ActionCreate, engine.KindRole)
	if !ok {
		t.Fatal("Missing create/Role")
	}
	err = fn(context.Background(), mislabelled{simpleHook()})
	if !engine.IsPermanent(err) {
		t.Errorf("Expected permanent error, got %v", err)
	}
}

func TestCurrentSource(t *testing.T) {
	api := &fakeAPI{
		roles: []client.Role{
			{RoleID: "repo:github.com/org/a", Description: "x", Scopes: []string{"b", "a"}},
			{RoleID: "login-identity:me", Description: "manual"},
		},
		hookGroups: map[string][]client.Hook{
			"project-releng": {{HookID: "nightly", Metadata: client.HookMetadata{Name: "n"}}},
			"personal":       {{HookID: "mine"}},
		},
		workerTypes: map[string]client.WorkerType{
			"gecko-b-1": {Owner: "releng"},
			"manual-wt": {Owner: "someone"},
		},
	}

	managed := NewManaged("Role=repo:", "Hook=project-", "AwsProvisionerWorkerType=gecko-")
	src := NewCurrentSource(api, managed, zerolog.Nop())

	got, err := src.Resources(context.Background())
	if err != nil {
		t.Fatalf("Resources failed: %v", err)
	}

	coll, err := engine.NewCollection("observed", got)
	if err != nil {
		t.Fatalf("Observed ids not unique: %v", err)
	}

	want := []string{
		"AwsProvisionerWorkerType=gecko-b-1",
		"Hook=project-releng/nightly",
		"Role=repo:github.com/org/a",
	}
	if strings.Join(coll.IDs(), ",") != strings.Join(want, ",") {
		t.Errorf("Unexpected ids: %v", coll.IDs())
	}

	if len(api.gets) != 1 || api.gets[0] != "gecko-b-1" {
		t.Errorf("Expected only managed worker types to be fetched, got %v", api.gets)
	}

	role := coll["Role=repo:github.com/org/a"].(*Role)
	if strings.Join(role.Scopes, ",") != "a,b" {
		t.Errorf("Observed scopes not normalized: %v", role.Scopes)
	}
}

func TestCurrentSource_ListError(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("unavailable")}
	src := NewCurrentSource(api, NewManaged("Role="), zerolog.Nop())

	if _, err := src.Resources(context.Background()); err == nil {
		t.Error("Expected error")
	}
}

// A role generated from configuration and the same role read back from the
// service must not produce an operation.
func TestDesiredMatchesObserved(t *testing.T) {
	desired := []engine.Resource{
		NewRole("repo:github.com/org/a", "CI", []string{"queue:*", "queue:create-task:x"}),
	}

	api := &fakeAPI{roles: []client.Role{{
		RoleID:      "repo:github.com/org/a",
		Description: DescriptionPrefix + "CI",
		Scopes:      []string{"queue:*"},
	}}}
	observed, err := NewCurrentSource(api, NewManaged("Role="), zerolog.Nop()).Resources(context.Background())
	if err != nil {
		t.Fatalf("Resources failed: %v", err)
	}

	ops, err := engine.Diff(desired, observed)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("Expected no operations, got %v", ops)
	}
}
