package resources

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

// CurrentSource lists the live state of the service. Only managed resources
// are returned.
type CurrentSource struct {
	api     RemoteAPI
	managed *Managed
	logger  zerolog.Logger
}

var _ engine.ResourceSource = (*CurrentSource)(nil)

// NewCurrentSource creates an observed-state source backed by api.
func NewCurrentSource(api RemoteAPI, managed *Managed, logger zerolog.Logger) *CurrentSource {
	return &CurrentSource{
		api:     api,
		managed: managed,
		logger:  logger.With().Str("component", "current").Logger(),
	}
}

// Resources fetches roles, hooks and worker types.
func (s *CurrentSource) Resources(ctx context.Context) ([]engine.Resource, error) {
	var out []engine.Resource

	roles, err := s.roles(ctx)
	if err != nil {
		return nil, err
	}
	out = append(out, roles...)

	hooks, err := s.hooks(ctx)
	if err != nil {
		return nil, err
	}
	out = append(out, hooks...)

	workerTypes, err := s.workerTypes(ctx)
	if err != nil {
		return nil, err
	}
	out = append(out, workerTypes...)

	s.logger.Debug().
		Int("roles", len(roles)).
		Int("hooks", len(hooks)).
		Int("worker_types", len(workerTypes)).
		Msg("Fetched current resources")

	return out, nil
}

func (s *CurrentSource) roles(ctx context.Context) ([]engine.Resource, error) {
	list, err := s.api.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	var out []engine.Resource
	for _, api := range list {
		r := RoleFromAPI(api)
		if s.managed.Contains(r.ID()) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *CurrentSource) hooks(ctx context.Context) ([]engine.Resource, error) {
	groups, err := s.api.ListHookGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hook groups: %w", err)
	}

	var out []engine.Resource
	for _, group := range groups {
		list, err := s.api.ListHooks(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("failed to list hooks in %s: %w", group, err)
		}
		for _, api := range list {
			if api.HookGroupID == "" {
				api.HookGroupID = group
			}
			h := HookFromAPI(api)
			if s.managed.Contains(h.ID()) {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func (s *CurrentSource) workerTypes(ctx context.Context) ([]engine.Resource, error) {
	names, err := s.api.ListWorkerTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list worker types: %w", err)
	}

	var out []engine.Resource
	for _, name := range names {
		// Skip the per-item fetch for worker types we do not manage.
		if !s.managed.Contains(string(engine.KindWorkerType) + "=" + name) {
			continue
		}
		api, err := s.api.GetWorkerType(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get worker type %s: %w", name, err)
		}
		api.WorkerType = name
		out = append(out, WorkerTypeFromAPI(*api))
	}
	return out, nil
}
