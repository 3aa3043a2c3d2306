package authz

// Subject is the snapshot of an authenticated user that authorization
// decisions are computed from: identity plus the set of assigned roles.
// A nil *Subject means no authenticated user. The snapshot is owned by the
// caller and replaced wholesale when roles change; predicates never mutate
// or cache it.
type Subject struct {
	ID    int64
	Roles []Role
}

// RolesOf returns the subject's de-duplicated role set. Absent subjects have
// no roles.
func RolesOf(u *Subject) map[Role]struct{} {
	if u == nil {
		return map[Role]struct{}{}
	}
	set := make(map[Role]struct{}, len(u.Roles))
	for _, r := range u.Roles {
		set[r] = struct{}{}
	}
	return set
}

// HasRole reports whether the subject holds the exact role.
func HasRole(u *Subject, role Role) bool {
	_, ok := RolesOf(u)[role]
	return ok
}

// HasAnyRole reports whether the subject holds at least one of the given
// roles. Vacuously false when roles is empty.
func HasAnyRole(u *Subject, roles []Role) bool {
	held := RolesOf(u)
	for _, r := range roles {
		if _, ok := held[r]; ok {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the subject holds every one of the given
// roles. Vacuously true when roles is empty.
func HasAllRoles(u *Subject, roles []Role) bool {
	held := RolesOf(u)
	for _, r := range roles {
		if _, ok := held[r]; !ok {
			return false
		}
	}
	return true
}

// HasPermission reports whether any of the subject's roles satisfies the
// permission. Unknown permission names grant nothing.
func HasPermission(u *Subject, p Permission) bool {
	return HasAnyRole(u, AllowedRoles(p))
}

// PermissionsFor returns the subject's effective permissions in stable
// order.
func PermissionsFor(u *Subject) []Permission {
	perms := make([]Permission, 0, len(AllPermissions))
	for _, p := range AllPermissions {
		if HasPermission(u, p) {
			perms = append(perms, p)
		}
	}
	return perms
}

// IsAdmin reports whether the subject holds the administrator role.
func IsAdmin(u *Subject) bool {
	return HasRole(u, RoleAdministrator)
}

// IsInstructor reports whether the subject holds either instructor role.
// This is a role check, not the INSTRUCTOR_ACCESS permission: an
// administrator without an instructor role is not an instructor.
func IsInstructor(u *Subject) bool {
	return HasAnyRole(u, []Role{RoleTandemInstructor, RoleAFFInstructor})
}

// IsSportJumper reports whether the subject holds either licensed sport
// role.
func IsSportJumper(u *Subject) bool {
	return HasAnyRole(u, []Role{RoleSportPaid, RoleSportFree})
}

// IsNewUser reports whether the subject's role set is exactly the single
// tandem_jumper role. A user holding tandem_jumper alongside anything else
// is not new.
func IsNewUser(u *Subject) bool {
	held := RolesOf(u)
	if len(held) != 1 {
		return false
	}
	_, ok := held[RoleTandemJumper]
	return ok
}
