package engine

import (
	"fmt"
	"sort"
)

// Kind identifies the category of an administrative resource and selects
// which remote operations apply to it.
type Kind string

const (
	// KindRole is an auth role (roleId plus scopes).
	KindRole Kind = "Role"

	// KindHook is a hook in a hook group.
	KindHook Kind = "Hook"

	// KindWorkerType is a provisioner worker-type definition.
	KindWorkerType Kind = "AwsProvisionerWorkerType"
)

// String returns the kind name as it appears in resource ids.
func (k Kind) String() string {
	return string(k)
}

// Action is the remote operation required to converge a single resource.
type Action string

const (
	// ActionCreate creates a resource present only in the desired state.
	ActionCreate Action = "create"

	// ActionUpdate overwrites a resource whose observed form differs from the desired one.
	ActionUpdate Action = "update"

	// ActionDelete removes a resource present only in the observed state.
	ActionDelete Action = "delete"
)

// Actions lists every action in execution-table order.
var Actions = []Action{ActionCreate, ActionUpdate, ActionDelete}

// String returns the action name.
func (a Action) String() string {
	return string(a)
}

// Gerund returns the progressive form used in progress and error messages
// ("creating", "updating", "deleting").
func (a Action) Gerund() string {
	switch a {
	case ActionCreate:
		return "creating"
	case ActionUpdate:
		return "updating"
	case ActionDelete:
		return "deleting"
	default:
		return string(a)
	}
}

// Resource is one administrative object, either desired or observed.
//
// Implementations are immutable values. ID must be derived from the kind
// and the kind-specific key fields only, so that the desired and observed
// representations of the same remote object share an id. Equal must be a
// pure field-by-field comparison.
type Resource interface {
	// ID returns the globally unique id, e.g. "Role=repo:github.com/org/*".
	ID() string

	// Kind returns the resource kind.
	Kind() Kind

	// Equal reports whether other has the same kind and identical fields.
	Equal(other Resource) bool

	// String renders the resource in a stable, human-readable form.
	String() string
}

// Operation pairs an action with the resource it applies to. For create and
// update the resource is the desired one; for delete it is the observed one.
type Operation struct {
	Action   Action
	Resource Resource
}

// String renders the operation as "<action> <id>".
func (o Operation) String() string {
	return fmt.Sprintf("%s %s", o.Action, o.Resource.ID())
}

// Collection maps resource ids to resources for one side of a reconciliation.
type Collection map[string]Resource

// NewCollection builds a collection from resources. Ids must be unique; a
// duplicate is reported as a DiffInputError naming side.
func NewCollection(side string, resources []Resource) (Collection, error) {
	c := make(Collection, len(resources))
	for _, r := range resources {
		id := r.ID()
		if _, exists := c[id]; exists {
			return nil, &DiffInputError{Side: side, ID: id}
		}
		c[id] = r
	}
	return c, nil
}

// IDs returns the collection's ids in ascending order.
func (c Collection) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resources returns the collection's resources ordered by id.
func (c Collection) Resources() []Resource {
	ids := c.IDs()
	out := make([]Resource, 0, len(ids))
	for _, id := range ids {
		out = append(out, c[id])
	}
	return out
}

// Summary counts the operations of a plan by action.
type Summary struct {
	ToCreate int `json:"to_create"`
	ToUpdate int `json:"to_update"`
	ToDelete int `json:"to_delete"`
}

// Total returns the number of remote calls the plan requires.
func (s Summary) Total() int {
	return s.ToCreate + s.ToUpdate + s.ToDelete
}

// Empty reports whether the plan is a no-op.
func (s Summary) Empty() bool {
	return s.Total() == 0
}

// Summarize counts ops by action.
func Summarize(ops []Operation) Summary {
	var s Summary
	for _, op := range ops {
		switch op.Action {
		case ActionCreate:
			s.ToCreate++
		case ActionUpdate:
			s.ToUpdate++
		case ActionDelete:
			s.ToDelete++
		}
	}
	return s
}
