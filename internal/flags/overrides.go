package flags

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned when a user's role has no entry in the role table.
var ErrUnknownRole = errors.New("unknown role")

// Override scopes. Role scopes are "role:<name>".
const (
	ScopeUser    = "user"
	ScopeSession = "session"
)

// RoleScope returns the override scope for a role.
func RoleScope(role string) string {
	return "role:" + role
}

// Override is a scoped patch to the flag table.
type Override struct {
	Scope  string
	Values map[string]bool
}

// GenerateOverride wraps values in an override for scope. A nil map yields an
// override with no values.
func GenerateOverride(values map[string]bool, scope string) Override {
	copied := make(map[string]bool, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Override{Scope: scope, Values: copied}
}

// ResolveOverrides returns one override per role, in role order, followed by
// one override for the user's own flags. Later entries take precedence when
// applied. The caller appends the session override last.
func ResolveOverrides(roles []string, userFlags map[string]bool, roleTable map[string]map[string]bool) ([]Override, error) {
	overrides := make([]Override, 0, len(roles)+1)
	for _, role := range roles {
		roleFlags, ok := roleTable[role]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
		overrides = append(overrides, GenerateOverride(roleFlags, RoleScope(role)))
	}
	overrides = append(overrides, GenerateOverride(userFlags, ScopeUser))
	return overrides, nil
}
