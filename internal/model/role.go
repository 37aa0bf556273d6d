package model

import "time"

// Role is a named bundle of permission strings. The wildcard permission "*"
// grants everything.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Built-in role names created by the seeder.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
)

// DefaultRoles returns the roles every installation starts with.
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleSuperAdmin, Permissions: []string{WildcardPermission}},
		{Name: RoleAdmin, Permissions: []string{PermAdminRead, PermAdminCreate, PermAdminUpdate}},
	}
}
