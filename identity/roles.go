package identity

import "strings"

// DefaultRole is assigned to newly created identities unless a store is
// configured otherwise.
const DefaultRole = "subscriber"

// DefaultRoles is the allow-list used when none is configured.
var DefaultRoles = []string{"administrator", "editor", "author", "contributor", "subscriber"}

// RoleSet is an allow-list of role names. Names are compared lower-cased.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet; empty names are skipped.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			s[r] = struct{}{}
		}
	}
	return s
}

// Allows reports whether role is in the set.
func (s RoleSet) Allows(role string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(role))]
	return ok
}
