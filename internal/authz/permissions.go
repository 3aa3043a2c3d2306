package authz

// Permission is a named grouping of roles representing a feature-access
// decision. Permissions and their role sets are compiled-in constants, not
// persisted or user-editable data.
type Permission string

const (
	PermissionViewDashboard          Permission = "VIEW_DASHBOARD"
	PermissionViewTandems            Permission = "VIEW_TANDEMS"
	PermissionViewManifest           Permission = "VIEW_MANIFEST"
	PermissionViewLogbook            Permission = "VIEW_LOGBOOK"
	PermissionViewLoads              Permission = "VIEW_LOADS"
	PermissionCreateLoad             Permission = "CREATE_LOAD"
	PermissionJoinManifest           Permission = "JOIN_MANIFEST"
	PermissionInstructorAccess       Permission = "INSTRUCTOR_ACCESS"
	PermissionTandemInstructorAccess Permission = "TANDEM_INSTRUCTOR_ACCESS"
	PermissionAFFInstructorAccess    Permission = "AFF_INSTRUCTOR_ACCESS"
	PermissionApproveJumps           Permission = "APPROVE_JUMPS"
	PermissionManageManifest         Permission = "MANAGE_MANIFEST"
	PermissionViewAdminPanel         Permission = "VIEW_ADMIN_PANEL"
	PermissionManageUsers            Permission = "MANAGE_USERS"
	PermissionManageLoads            Permission = "MANAGE_LOADS"
	PermissionManageAircraft         Permission = "MANAGE_AIRCRAFT"
	PermissionManageJumpTypes        Permission = "MANAGE_JUMP_TYPES"
	PermissionManageSettings         Permission = "MANAGE_SETTINGS"
	PermissionAdminAccess            Permission = "ADMIN_ACCESS"
)

// AllPermissions lists every known permission in display order. The order is
// stable so effective-permission listings stay deterministic.
var AllPermissions = []Permission{
	PermissionViewDashboard,
	PermissionViewTandems,
	PermissionViewManifest,
	PermissionViewLogbook,
	PermissionViewLoads,
	PermissionCreateLoad,
	PermissionJoinManifest,
	PermissionInstructorAccess,
	PermissionTandemInstructorAccess,
	PermissionAFFInstructorAccess,
	PermissionApproveJumps,
	PermissionManageManifest,
	PermissionViewAdminPanel,
	PermissionManageUsers,
	PermissionManageLoads,
	PermissionManageAircraft,
	PermissionManageJumpTypes,
	PermissionManageSettings,
	PermissionAdminAccess,
}

func (p Permission) String() string { return string(p) }

// RoleMatrix enumerates which roles satisfy a permission. The lists are
// intentionally explicit so access changes stay reviewable.
var RoleMatrix = map[Permission][]Role{
	PermissionViewDashboard: {
		RoleTandemJumper,
		RoleAFFStudent,
		RoleSportPaid,
		RoleSportFree,
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionViewTandems: {
		RoleTandemJumper,
		RoleAFFStudent,
		RoleSportPaid,
		RoleSportFree,
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionViewManifest: {
		RoleAFFStudent,
		RoleSportPaid,
		RoleSportFree,
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionViewLogbook: {
		RoleAFFStudent,
		RoleSportPaid,
		RoleSportFree,
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionViewLoads: {
		RoleAFFStudent,
		RoleSportPaid,
		RoleSportFree,
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionCreateLoad: {
		RoleSportPaid,
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionJoinManifest: {
		RoleSportPaid,
		RoleSportFree,
	},
	PermissionInstructorAccess: {
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionTandemInstructorAccess: {
		RoleTandemInstructor,
		RoleAdministrator,
	},
	PermissionAFFInstructorAccess: {
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionApproveJumps: {
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionManageManifest: {
		RoleTandemInstructor,
		RoleAFFInstructor,
		RoleAdministrator,
	},
	PermissionViewAdminPanel: {
		RoleAdministrator,
	},
	PermissionManageUsers: {
		RoleAdministrator,
	},
	PermissionManageLoads: {
		RoleAdministrator,
	},
	PermissionManageAircraft: {
		RoleAdministrator,
	},
	PermissionManageJumpTypes: {
		RoleAdministrator,
	},
	PermissionManageSettings: {
		RoleAdministrator,
	},
	PermissionAdminAccess: {
		RoleAdministrator,
	},
}

// AllowedRoles returns the roles satisfying p. Unknown permissions allow
// nothing.
func AllowedRoles(p Permission) []Role {
	return RoleMatrix[p]
}
