package model

import "time"

// Admin is a dashboard operator. Passwords are stored as bcrypt hashes and
// never serialized. Roles holds role names and is filled by the store when
// the admin is loaded; it is not a column.
type Admin struct {
	ID           int64     `json:"id" db:"id"`
	UUID         string    `json:"uuid" db:"uuid"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // bcrypt hash, never expose
	Name         string    `json:"name" db:"name"`
	Roles        []string  `json:"roles" db:"-"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// AdminSummary is the short form returned after registration and login.
type AdminSummary struct {
	ID    int64    `json:"id"`
	UUID  string   `json:"uuid"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

// Summary returns the short form of a.
func (a *Admin) Summary() AdminSummary {
	return AdminSummary{
		ID:    a.ID,
		UUID:  a.UUID,
		Email: a.Email,
		Name:  a.Name,
		Roles: a.Roles,
	}
}

// HasRole reports whether the admin currently holds the named role.
func (a *Admin) HasRole(name string) bool {
	for _, r := range a.Roles {
		if r == name {
			return true
		}
	}
	return false
}
