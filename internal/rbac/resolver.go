package rbac

// HasPermission reports whether any of the roles grants the named
// permission. The wildcard short-circuits before the named list is
// consulted. Zero roles hold zero permissions.
func HasPermission(roles []string, name string) bool {
	if name == "" {
		return false
	}
	for _, raw := range roles {
		for _, grant := range permissionsByRole[Normalize(raw)] {
			if grant == PermAll || grant == name {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of the named permissions
// is granted.
func HasAnyPermission(roles []string, names ...string) bool {
	for _, name := range names {
		if HasPermission(roles, name) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every named permission is granted.
// Vacuously true for an empty name list.
func HasAllPermissions(roles []string, names ...string) bool {
	for _, name := range names {
		if !HasPermission(roles, name) {
			return false
		}
	}
	return true
}
