package authz

// Derived convenience gates. Each binds one fixed role or permission check;
// their role lists are part of the observable contract.

// AdminOnly admits administrators only.
func AdminOnly() Gate {
	return Gate{Permission: PermissionAdminAccess}
}

// InstructorOnly admits either instructor role plus administrators, via the
// INSTRUCTOR_ACCESS permission.
func InstructorOnly() Gate {
	return Gate{Permission: PermissionInstructorAccess}
}

// SportJumperOnly admits licensed sport jumpers and AFF students.
func SportJumperOnly() Gate {
	return Gate{AnyRole: []Role{RoleSportPaid, RoleSportFree, RoleAFFStudent}}
}

// ExcludeNewUsers admits everyone except users holding only the bare
// tandem_jumper role.
func ExcludeNewUsers() Gate {
	return Gate{AnyRole: []Role{
		RoleAFFStudent,
		RoleSportPaid,
		RoleSportFree,
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	}}
}
