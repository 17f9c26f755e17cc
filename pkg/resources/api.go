package resources

import (
	"context"
	"fmt"

	"github.com/ciadmin/ciadmin/pkg/client"
	"github.com/ciadmin/ciadmin/pkg/engine"
)

// RoleAPI is the part of the remote API that manages roles.
type RoleAPI interface {
	ListRoles(ctx context.Context) ([]client.Role, error)
	CreateRole(ctx context.Context, roleID string, role client.Role) error
	UpdateRole(ctx context.Context, roleID string, role client.Role) error
	DeleteRole(ctx context.Context, roleID string) error
}

// HookAPI is the part of the remote API that manages hooks.
type HookAPI interface {
	ListHookGroups(ctx context.Context) ([]string, error)
	ListHooks(ctx context.Context, hookGroupID string) ([]client.Hook, error)
	CreateHook(ctx context.Context, hookGroupID, hookID string, hook client.Hook) error
	UpdateHook(ctx context.Context, hookGroupID, hookID string, hook client.Hook) error
	RemoveHook(ctx context.Context, hookGroupID, hookID string) error
}

// WorkerTypeAPI is the part of the remote API that manages worker types.
type WorkerTypeAPI interface {
	ListWorkerTypes(ctx context.Context) ([]string, error)
	GetWorkerType(ctx context.Context, name string) (*client.WorkerType, error)
	CreateWorkerType(ctx context.Context, name string, wt client.WorkerType) error
	UpdateWorkerType(ctx context.Context, name string, wt client.WorkerType) error
	RemoveWorkerType(ctx context.Context, name string) error
}

// RemoteAPI is everything the reconciler needs from the management service.
// *client.Client implements it.
type RemoteAPI interface {
	RoleAPI
	HookAPI
	WorkerTypeAPI
}

var _ RemoteAPI = (*client.Client)(nil)

// NewDispatchTable binds every (action, kind) pair to api. This is the only
// place where resource kinds are registered; the returned table has been
// validated to cover every kind in Kinds.
func NewDispatchTable(api RemoteAPI) (*engine.DispatchTable, error) {
	entries := []struct {
		action engine.Action
		kind   engine.Kind
		fn     engine.OperationFunc
	}{
		{engine.ActionCreate, engine.KindRole, bind(func(ctx context.Context, r *Role) error {
			return api.CreateRole(ctx, r.RoleID, r.ToAPI())
		})},
		{engine.ActionUpdate, engine.KindRole, bind(func(ctx context.Context, r *Role) error {
			return api.UpdateRole(ctx, r.RoleID, r.ToAPI())
		})},
		{engine.ActionDelete, engine.KindRole, bind(func(ctx context.Context, r *Role) error {
			return api.DeleteRole(ctx, r.RoleID)
		})},

		{engine.ActionCreate, engine.KindHook, bind(func(ctx context.Context, h *Hook) error {
			return api.CreateHook(ctx, h.HookGroupID, h.HookID, h.ToAPI())
		})},
		{engine.ActionUpdate, engine.KindHook, bind(func(ctx context.Context, h *Hook) error {
			return api.UpdateHook(ctx, h.HookGroupID, h.HookID, h.ToAPI())
		})},
		{engine.ActionDelete, engine.KindHook, bind(func(ctx context.Context, h *Hook) error {
			return api.RemoveHook(ctx, h.HookGroupID, h.HookID)
		})},

		{engine.ActionCreate, engine.KindWorkerType, bind(func(ctx context.Context, w *WorkerType) error {
			return api.CreateWorkerType(ctx, w.Name, w.ToAPI())
		})},
		{engine.ActionUpdate, engine.KindWorkerType, bind(func(ctx context.Context, w *WorkerType) error {
			return api.UpdateWorkerType(ctx, w.Name, w.ToAPI())
		})},
		{engine.ActionDelete, engine.KindWorkerType, bind(func(ctx context.Context, w *WorkerType) error {
			return api.RemoveWorkerType(ctx, w.Name)
		})},
	}

	table := engine.NewDispatchTable()
	for _, e := range entries {
		if err := table.Register(e.action, e.kind, e.fn); err != nil {
			return nil, err
		}
	}
	if err := table.Validate(Kinds...); err != nil {
		return nil, err
	}
	return table, nil
}

// bind adapts a typed operation to engine.OperationFunc.
func bind[T engine.Resource](fn func(ctx context.Context, r T) error) engine.OperationFunc {
	return func(ctx context.Context, r engine.Resource) error {
		typed, ok := r.(T)
		if !ok {
			return engine.NewPermanentError(
				fmt.Sprintf("unexpected resource type %T for kind %s", r, r.Kind()), nil,
			).WithResource(r.ID()).WithCode(engine.ErrCodeValidation)
		}
		return fn(ctx, typed)
	}
}
