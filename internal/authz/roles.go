// Package authz holds the compiled-in role and permission model plus the
// access-gate decision logic. Everything here is pure: predicates recompute
// from the subject snapshot they are handed, never touch I/O, and resolve
// every failure into a value rather than an error.
package authz

import (
	"fmt"
	"strings"
)

// Role is a fixed category assigned to a user determining baseline
// capabilities. The set is closed; new roles require a code change.
type Role string

const (
	RoleTandemJumper     Role = "tandem_jumper"
	RoleAFFStudent       Role = "aff_student"
	RoleSportPaid        Role = "sport_paid"
	RoleSportFree        Role = "sport_free"
	RoleTandemInstructor Role = "tandem_instructor"
	RoleAFFInstructor    Role = "aff_instructor"
	RoleAdministrator    Role = "administrator"
)

// AllRoles lists every known role in display order.
var AllRoles = []Role{
	RoleTandemJumper,
	RoleAFFStudent,
	RoleSportPaid,
	RoleSportFree,
	RoleTandemInstructor,
	RoleAFFInstructor,
	RoleAdministrator,
}

func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole maps a wire value onto a known role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("authz: unknown role %q", s)
	}
	return r, nil
}
