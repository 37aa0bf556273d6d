package model

import "sort"

// WildcardPermission grants every permission.
const WildcardPermission = "*"

// Permissions checked by the HTTP API.
const (
	PermAdminRead    = "admin:read"
	PermAdminCreate  = "admin:create"
	PermAdminUpdate  = "admin:update"
	PermAdminDelete  = "admin:delete"
	PermRoleRead     = "role:read"
	PermActivityRead = "activity:read"
)

// AllPermissions lists every permission the API checks.
func AllPermissions() []string {
	return []string{
		PermAdminRead, PermAdminCreate, PermAdminUpdate, PermAdminDelete,
		PermRoleRead, PermActivityRead,
	}
}

// PermissionSet is the union of permissions granted by a set of roles.
type PermissionSet map[string]struct{}

// EffectivePermissions unions the permissions of every role. An empty role
// list yields an empty set.
func EffectivePermissions(roles []Role) PermissionSet {
	set := make(PermissionSet)
	for _, r := range roles {
		for _, p := range r.Permissions {
			set[p] = struct{}{}
		}
	}
	return set
}

// Allows reports whether perm is granted, either directly or via the wildcard.
func (s PermissionSet) Allows(perm string) bool {
	if _, ok := s[WildcardPermission]; ok {
		return true
	}
	_, ok := s[perm]
	return ok
}

// List returns the permissions in sorted order.
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
