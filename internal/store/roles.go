package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/getscaley/scaley/internal/model"
)

const roleColumns = "id, name, permissions_json, created_at, updated_at"

// roleRow maps 1:1 to the roles table. Permissions are stored as a JSON
// array in permissions_json.
type roleRow struct {
	ID              int64     `db:"id"`
	Name            string    `db:"name"`
	PermissionsJSON string    `db:"permissions_json"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func roleRowFromModel(r *model.Role) (roleRow, error) {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return roleRow{}, fmt.Errorf("marshal permissions: %w", err)
	}
	return roleRow{
		ID:              r.ID,
		Name:            r.Name,
		PermissionsJSON: string(b),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func (r roleRow) toModel() (model.Role, error) {
	perms := []string{}
	if r.PermissionsJSON != "" {
		if err := json.Unmarshal([]byte(r.PermissionsJSON), &perms); err != nil {
			return model.Role{}, fmt.Errorf("unmarshal permissions of role %q: %w", r.Name, err)
		}
	}
	return model.Role{
		ID:          r.ID,
		Name:        r.Name,
		Permissions: perms,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func rowsToRoles(rows []roleRow) ([]model.Role, error) {
	roles := make([]model.Role, 0, len(rows))
	for _, r := range rows {
		role, err := r.toModel()
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// CreateRole inserts a new role. The ID, CreatedAt, and UpdatedAt fields are
// populated after a successful insert. A duplicate name yields ErrConflict.
func (s *Store) CreateRole(ctx context.Context, role *model.Role) error {
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now

	row, err := roleRowFromModel(role)
	if err != nil {
		return err
	}

	id, err := s.insert(ctx, s.db, "roles", []string{"name", "permissions_json", "created_at", "updated_at"}, row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert role: %w", err)
	}
	role.ID = id
	return nil
}

// EnsureRole creates role unless a role with the same name already exists,
// in which case role is overwritten with the stored one. Existing
// permissions are never changed. It reports whether a row was created.
func (s *Store) EnsureRole(ctx context.Context, role *model.Role) (bool, error) {
	existing, err := s.GetRoleByName(ctx, role.Name)
	if err == nil {
		*role = *existing
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	err = s.CreateRole(ctx, role)
	if errors.Is(err, ErrConflict) {
		// Lost a race with a concurrent creator.
		existing, err := s.GetRoleByName(ctx, role.Name)
		if err != nil {
			return false, err
		}
		*role = *existing
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetRoleByName returns a role by its unique name.
func (s *Store) GetRoleByName(ctx context.Context, name string) (*model.Role, error) {
	var row roleRow
	q := s.db.Rebind("SELECT " + roleColumns + " FROM roles WHERE name = ?")
	if err := s.db.GetContext(ctx, &row, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	role, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles returns all roles ordered by name.
func (s *Store) ListRoles(ctx context.Context) ([]model.Role, error) {
	var rows []roleRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+roleColumns+" FROM roles ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return rowsToRoles(rows)
}

// UpdateRolePermissions replaces the permission set of the named role.
func (s *Store) UpdateRolePermissions(ctx context.Context, name string, permissions []string) error {
	row, err := roleRowFromModel(&model.Role{Name: name, Permissions: permissions, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	const q = `UPDATE roles SET permissions_json = :permissions_json, updated_at = :updated_at WHERE name = :name`
	result, err := s.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("update role permissions: %w", err)
	}
	return affectedOne(result, "update role permissions")
}

// GetAdminRoles returns the current roles of an admin with their
// permissions. It returns ErrNotFound when the admin no longer exists, and
// an empty slice when the admin holds no roles.
func (s *Store) GetAdminRoles(ctx context.Context, adminID int64) ([]model.Role, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind("SELECT COUNT(*) FROM admins WHERE id = ?"), adminID); err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	var rows []roleRow
	q := s.db.Rebind(`SELECT r.id, r.name, r.permissions_json, r.created_at, r.updated_at
		FROM roles r JOIN admin_roles ar ON ar.role_id = r.id
		WHERE ar.admin_id = ? ORDER BY r.name`)
	if err := s.db.SelectContext(ctx, &rows, q, adminID); err != nil {
		return nil, fmt.Errorf("get admin roles: %w", err)
	}
	return rowsToRoles(rows)
}
