package client

import (
	"context"
	"net/http"
)

// ListHookGroups returns the ids of all hook groups.
func (c *Client) ListHookGroups(ctx context.Context) ([]string, error) {
	var out hookGroupList
	if err := c.do(ctx, http.MethodGet, hooksPrefix+"/hooks", nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// ListHooks returns the hooks of hookGroupID.
func (c *Client) ListHooks(ctx context.Context, hookGroupID string) ([]Hook, error) {
	var out hookList
	if err := c.do(ctx, http.MethodGet, hooksPrefix+"/hooks/"+escape(hookGroupID), nil, &out); err != nil {
		return nil, err
	}
	return out.Hooks, nil
}

// CreateHook creates a hook.
func (c *Client) CreateHook(ctx context.Context, hookGroupID, hookID string, hook Hook) error {
	return c.do(ctx, http.MethodPut, hookPath(hookGroupID, hookID), withHookIDs(hook, hookGroupID, hookID), nil)
}

// UpdateHook overwrites an existing hook.
func (c *Client) UpdateHook(ctx context.Context, hookGroupID, hookID string, hook Hook) error {
	return c.do(ctx, http.MethodPost, hookPath(hookGroupID, hookID), withHookIDs(hook, hookGroupID, hookID), nil)
}

// RemoveHook deletes a hook.
func (c *Client) RemoveHook(ctx context.Context, hookGroupID, hookID string) error {
	return c.do(ctx, http.MethodDelete, hookPath(hookGroupID, hookID), nil, nil)
}

func hookPath(hookGroupID, hookID string) string {
	return hooksPrefix + "/hooks/" + escape(hookGroupID) + "/" + escape(hookID)
}

func withHookIDs(hook Hook, hookGroupID, hookID string) Hook {
	hook.HookGroupID = hookGroupID
	hook.HookID = hookID
	return hook
}
