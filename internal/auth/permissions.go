package auth

// Permission represents a named listener capability.
type Permission string

// Permission constants.
const (
	PermRunRead    Permission = "run:read"
	PermRunStart   Permission = "run:start"
	PermRunControl Permission = "run:control" // pause, resume, cancel
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermRunRead,
	},
	RoleOperator: {
		PermRunRead,
		PermRunStart,
		PermRunControl,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// PermissionForAction maps a control envelope action to the permission it
// needs. Unknown actions return "" and are rejected by the caller.
func PermissionForAction(action string) Permission {
	switch action {
	case "status":
		return PermRunRead
	case "start":
		return PermRunStart
	case "pause", "resume", "cancel":
		return PermRunControl
	}
	return ""
}
