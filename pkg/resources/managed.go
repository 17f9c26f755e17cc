package resources

import (
	"sort"
	"strings"
)

// Managed is the set of id prefixes owned by this tool. Resources outside
// it are neither created nor deleted, so that hand-maintained objects in
// the same deployment are left alone.
type Managed struct {
	prefixes []string
}

// NewManaged creates a set from id prefixes such as "Role=repo:" or
// "Hook=project-" ("Role=" manages every role).
func NewManaged(prefixes ...string) *Managed {
	ps := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			ps = append(ps, p)
		}
	}
	sort.Strings(ps)
	return &Managed{prefixes: ps}
}

// Contains reports whether id is managed.
func (m *Managed) Contains(id string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// Prefixes returns the configured prefixes, sorted.
func (m *Managed) Prefixes() []string {
	if m == nil {
		return nil
	}
	return append([]string{}, m.prefixes...)
}
