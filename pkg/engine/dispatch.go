package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// OperationFunc performs one remote state-changing call for a resource.
type OperationFunc func(ctx context.Context, r Resource) error

// DispatchKey identifies a dispatch table entry.
type DispatchKey struct {
	Action Action
	Kind   Kind
}

// String renders the key as "<action>/<kind>".
func (k DispatchKey) String() string {
	return fmt.Sprintf("%s/%s", k.Action, k.Kind)
}

// DispatchTable maps each (action, kind) pair to the function that performs
// it. It is filled once at startup and only read afterwards.
type DispatchTable struct {
	entries map[DispatchKey]OperationFunc
}

// NewDispatchTable creates an empty dispatch table.
func NewDispatchTable() *DispatchTable {
	return &DispatchTable{
		entries: make(map[DispatchKey]OperationFunc),
	}
}

// Register binds fn to (action, kind). Registering the same pair twice is an error.
func (t *DispatchTable) Register(action Action, kind Kind, fn OperationFunc) error {
	if fn == nil {
		return fmt.Errorf("nil operation for %s/%s", action, kind)
	}
	key := DispatchKey{Action: action, Kind: kind}
	if _, exists := t.entries[key]; exists {
		return fmt.Errorf("operation already registered for %s", key)
	}
	t.entries[key] = fn
	return nil
}

// Lookup returns the function bound to (action, kind).
func (t *DispatchTable) Lookup(action Action, kind Kind) (OperationFunc, bool) {
	fn, ok := t.entries[DispatchKey{Action: action, Kind: kind}]
	return fn, ok
}

// Entries returns all registered keys ordered by kind, then action.
func (t *DispatchTable) Entries() []DispatchKey {
	keys := make([]DispatchKey, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return actionRank(keys[i].Action) < actionRank(keys[j].Action)
	})
	return keys
}

// Kinds returns the distinct kinds that have at least one entry, sorted.
func (t *DispatchTable) Kinds() []Kind {
	seen := make(map[Kind]bool)
	kinds := make([]Kind, 0)
	for k := range t.entries {
		if !seen[k.Kind] {
			seen[k.Kind] = true
			kinds = append(kinds, k.Kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Validate checks that every action is registered for each of kinds.
func (t *DispatchTable) Validate(kinds ...Kind) error {
	var missing []string
	for _, kind := range kinds {
		for _, action := range Actions {
			if _, ok := t.Lookup(action, kind); !ok {
				missing = append(missing, DispatchKey{Action: action, Kind: kind}.String())
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("dispatch table incomplete, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func actionRank(a Action) int {
	for i, candidate := range Actions {
		if candidate == a {
			return i
		}
	}
	return len(Actions)
}
