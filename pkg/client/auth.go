package client

import (
	"context"
	"net/http"
)

// ListRoles returns every role defined in the deployment.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, authPrefix+"/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// CreateRole creates roleID. The role must not exist.
func (c *Client) CreateRole(ctx context.Context, roleID string, role Role) error {
	role.RoleID = ""
	return c.do(ctx, http.MethodPut, authPrefix+"/roles/"+escape(roleID), role, nil)
}

// UpdateRole overwrites the description and scopes of roleID.
func (c *Client) UpdateRole(ctx context.Context, roleID string, role Role) error {
	role.RoleID = ""
	return c.do(ctx, http.MethodPost, authPrefix+"/roles/"+escape(roleID), role, nil)
}

// DeleteRole removes roleID.
func (c *Client) DeleteRole(ctx context.Context, roleID string) error {
	return c.do(ctx, http.MethodDelete, authPrefix+"/roles/"+escape(roleID), nil, nil)
}
