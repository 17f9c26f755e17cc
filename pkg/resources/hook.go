package resources

import (
	"fmt"

	"github.com/ciadmin/ciadmin/pkg/client"
	"github.com/ciadmin/ciadmin/pkg/engine"
)

// Binding is an exchange binding that triggers a hook.
type Binding struct {
	Exchange          string `json:"exchange" validate:"required"`
	RoutingKeyPattern string `json:"routingKeyPattern" validate:"required"`
}

// String renders the binding on one line.
func (b Binding) String() string {
	return fmt.Sprintf("Binding(exchange=%q, routingKeyPattern=%q)", b.Exchange, b.RoutingKeyPattern)
}

// Hook is a hook in a hook group.
type Hook struct {
	HookGroupID   string                 `json:"hookGroupId" validate:"required"`
	HookID        string                 `json:"hookId" validate:"required"`
	Name          string                 `json:"name" validate:"required"`
	Description   string                 `json:"description"`
	Owner         string                 `json:"owner" validate:"required"`
	EmailOnError  bool                   `json:"emailOnError"`
	Schedule      []string               `json:"schedule"`
	Bindings      []Binding              `json:"bindings" validate:"dive"`
	Task          map[string]interface{} `json:"task" validate:"required"`
	TriggerSchema map[string]interface{} `json:"triggerSchema"`
}

// NewHook returns a copy of h with a prefixed description and non-nil
// collections, ready to be compared.
func NewHook(h Hook) *Hook {
	out := h
	out.Description = Describe(h.Description)
	out.Schedule = append([]string{}, h.Schedule...)
	out.Bindings = append([]Binding{}, h.Bindings...)
	out.Task = cloneMap(h.Task)
	out.TriggerSchema = cloneMap(h.TriggerSchema)
	if out.TriggerSchema == nil {
		out.TriggerSchema = map[string]interface{}{}
	}
	return &out
}

// HookFromAPI converts a hook definition returned by the service.
func HookFromAPI(api client.Hook) *Hook {
	bindings := make([]Binding, 0, len(api.Bindings))
	for _, b := range api.Bindings {
		bindings = append(bindings, Binding{Exchange: b.Exchange, RoutingKeyPattern: b.RoutingKeyPattern})
	}
	return NewHook(Hook{
		HookGroupID:   api.HookGroupID,
		HookID:        api.HookID,
		Name:          api.Metadata.Name,
		Description:   api.Metadata.Description,
		Owner:         api.Metadata.Owner,
		EmailOnError:  api.Metadata.EmailOnError,
		Schedule:      api.Schedule,
		Bindings:      bindings,
		Task:          api.Task,
		TriggerSchema: api.TriggerSchema,
	})
}

// ID returns "Hook=<hookGroupId>/<hookId>".
func (h *Hook) ID() string {
	return fmt.Sprintf("%s=%s/%s", engine.KindHook, h.HookGroupID, h.HookID)
}

// Kind returns engine.KindHook.
func (h *Hook) Kind() engine.Kind {
	return engine.KindHook
}

// Equal reports whether other is a hook with identical fields.
func (h *Hook) Equal(other engine.Resource) bool {
	o, ok := other.(*Hook)
	if !ok {
		return false
	}
	if h.HookGroupID != o.HookGroupID || h.HookID != o.HookID ||
		h.Name != o.Name || h.Description != o.Description ||
		h.Owner != o.Owner || h.EmailOnError != o.EmailOnError {
		return false
	}
	if len(h.Schedule) != len(o.Schedule) || len(h.Bindings) != len(o.Bindings) {
		return false
	}
	for i := range h.Schedule {
		if h.Schedule[i] != o.Schedule[i] {
			return false
		}
	}
	for i := range h.Bindings {
		if h.Bindings[i] != o.Bindings[i] {
			return false
		}
	}
	return jsonEqual(h.Task, o.Task) && jsonEqual(h.TriggerSchema, o.TriggerSchema)
}

// String renders the hook for humans.
func (h *Hook) String() string {
	return formatResource(h.ID(),
		field{"hookGroupId", h.HookGroupID},
		field{"hookId", h.HookID},
		field{"name", h.Name},
		field{"description", h.Description},
		field{"owner", h.Owner},
		field{"emailOnError", h.EmailOnError},
		field{"schedule", h.Schedule},
		field{"bindings", h.Bindings},
		field{"task", h.Task},
		field{"triggerSchema", h.TriggerSchema},
	)
}

// ToAPI returns the request body for create and update calls.
func (h *Hook) ToAPI() client.Hook {
	bindings := make([]client.Binding, 0, len(h.Bindings))
	for _, b := range h.Bindings {
		bindings = append(bindings, client.Binding{Exchange: b.Exchange, RoutingKeyPattern: b.RoutingKeyPattern})
	}
	return client.Hook{
		HookGroupID: h.HookGroupID,
		HookID:      h.HookID,
		Metadata: client.HookMetadata{
			Name:         h.Name,
			Description:  h.Description,
			Owner:        h.Owner,
			EmailOnError: h.EmailOnError,
		},
		Schedule:      append([]string{}, h.Schedule...),
		Bindings:      bindings,
		Task:          cloneMap(h.Task),
		TriggerSchema: cloneMap(h.TriggerSchema),
	}
}

// Validate checks required fields.
func (h *Hook) Validate() error {
	return validate.Struct(h)
}
