package client

import (
	"context"
	"net/http"
)

// ListWorkerTypes returns the names of all worker types.
func (c *Client) ListWorkerTypes(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, provisionerPrefix+"/list-worker-types", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetWorkerType returns the definition of name.
func (c *Client) GetWorkerType(ctx context.Context, name string) (*WorkerType, error) {
	var wt WorkerType
	if err := c.do(ctx, http.MethodGet, workerTypePath(name), nil, &wt); err != nil {
		return nil, err
	}
	if wt.WorkerType == "" {
		wt.WorkerType = name
	}
	return &wt, nil
}

// CreateWorkerType creates a worker type.
func (c *Client) CreateWorkerType(ctx context.Context, name string, wt WorkerType) error {
	return c.do(ctx, http.MethodPut, workerTypePath(name), stripServerFields(wt), nil)
}

// UpdateWorkerType overwrites a worker type definition.
func (c *Client) UpdateWorkerType(ctx context.Context, name string, wt WorkerType) error {
	return c.do(ctx, http.MethodPost, workerTypePath(name)+"/update", stripServerFields(wt), nil)
}

// RemoveWorkerType deletes a worker type.
func (c *Client) RemoveWorkerType(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, workerTypePath(name), nil, nil)
}

func workerTypePath(name string) string {
	return provisionerPrefix + "/worker-type/" + escape(name)
}

func stripServerFields(wt WorkerType) WorkerType {
	wt.WorkerType = ""
	wt.LastModified = ""
	return wt
}
