package resources

import (
	"sort"
	"strings"

	"github.com/ciadmin/ciadmin/pkg/client"
	"github.com/ciadmin/ciadmin/pkg/engine"
)

// Role is an auth role: a role id and the scopes it expands to.
type Role struct {
	RoleID      string   `json:"roleId" validate:"required"`
	Description string   `json:"description"`
	Scopes      []string `json:"scopes"`
}

// NewRole creates a role with a prefixed description and normalized scopes.
func NewRole(roleID, description string, scopes []string) *Role {
	return &Role{
		RoleID:      roleID,
		Description: Describe(description),
		Scopes:      NormalizeScopes(scopes),
	}
}

// RoleFromAPI converts a role returned by the service.
func RoleFromAPI(api client.Role) *Role {
	return NewRole(api.RoleID, api.Description, api.Scopes)
}

// ID returns "Role=<roleId>".
func (r *Role) ID() string {
	return string(engine.KindRole) + "=" + r.RoleID
}

// Kind returns engine.KindRole.
func (r *Role) Kind() engine.Kind {
	return engine.KindRole
}

// Equal reports whether other is a role with identical fields.
func (r *Role) Equal(other engine.Resource) bool {
	o, ok := other.(*Role)
	if !ok {
		return false
	}
	if r.RoleID != o.RoleID || r.Description != o.Description {
		return false
	}
	if len(r.Scopes) != len(o.Scopes) {
		return false
	}
	for i := range r.Scopes {
		if r.Scopes[i] != o.Scopes[i] {
			return false
		}
	}
	return true
}

// String renders the role for humans.
func (r *Role) String() string {
	return formatResource(r.ID(),
		field{"roleId", r.RoleID},
		field{"description", r.Description},
		field{"scopes", r.Scopes},
	)
}

// ToAPI returns the request body for create and update calls.
func (r *Role) ToAPI() client.Role {
	scopes := make([]string, len(r.Scopes))
	copy(scopes, r.Scopes)
	return client.Role{
		Description: r.Description,
		Scopes:      scopes,
	}
}

// Validate checks required fields.
func (r *Role) Validate() error {
	return validate.Struct(r)
}

// NormalizeScopes returns scopes sorted, without duplicates and without
// scopes already satisfied by a star scope in the same set ("queue:*"
// satisfies "queue:create-task:foo").
func NormalizeScopes(scopes []string) []string {
	uniq := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		uniq[s] = true
	}

	var stars []string
	for s := range uniq {
		if strings.HasSuffix(s, "*") {
			stars = append(stars, strings.TrimSuffix(s, "*"))
		}
	}

	out := make([]string, 0, len(uniq))
	for s := range uniq {
		if coveredByStar(s, stars) {
			continue
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func coveredByStar(scope string, stars []string) bool {
	for _, prefix := range stars {
		if scope == prefix+"*" {
			continue
		}
		if strings.HasPrefix(scope, prefix) {
			return true
		}
	}
	return false
}
