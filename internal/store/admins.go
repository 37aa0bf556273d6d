package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/query"
)

const adminColumns = "a.id, a.uuid, a.email, a.password_hash, a.name, a.created_at, a.updated_at"

var adminInsertColumns = []string{"uuid", "email", "password_hash", "name", "created_at", "updated_at"}

// AdminSortColumns maps the public sort fields of the admin list to columns.
var AdminSortColumns = map[string]string{
	"id":        "id",
	"email":     "email",
	"name":      "name",
	"createdAt": "created_at",
}

// AdminFilter narrows and orders ListAdmins. A zero Sort orders by id.
type AdminFilter struct {
	Search string // case-insensitive substring of email or name
	Role   string // exact role name the admin must hold
	Sort   query.Sort
	Limit  int
	Offset int
}

// CreateAdmin inserts a new admin and attaches the named roles in one
// transaction. Unknown role names are ignored. The ID, UUID (when empty),
// Roles, CreatedAt and UpdatedAt fields are populated on success. A duplicate
// email or uuid yields ErrConflict.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin, roleNames []string) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now
	if admin.UUID == "" {
		admin.UUID = uuid.NewString()
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.insert(ctx, tx, "admins", adminInsertColumns, admin)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert admin: %w", err)
		}
		admin.ID = id

		if err := s.setRoles(ctx, tx, id, roleNames); err != nil {
			return err
		}
		roles, err := s.loadRoleNames(ctx, tx, []int64{id})
		if err != nil {
			return err
		}
		admin.Roles = roleNamesOrEmpty(roles[id])
		return nil
	})
}

// GetAdmin returns an admin by numeric ID, including role names.
func (s *Store) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	return s.getAdmin(ctx, "a.id = ?", id, "get admin")
}

// GetAdminByUUID returns an admin by its public UUID, including role names.
func (s *Store) GetAdminByUUID(ctx context.Context, id string) (*model.Admin, error) {
	return s.getAdmin(ctx, "a.uuid = ?", id, "get admin by uuid")
}

// GetAdminByEmail returns an admin by email address, including role names.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	return s.getAdmin(ctx, "a.email = ?", email, "get admin by email")
}

func (s *Store) getAdmin(ctx context.Context, where string, arg interface{}, what string) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM admins a WHERE " + where)
	if err := s.db.GetContext(ctx, &admin, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", what, err)
	}

	roles, err := s.loadRoleNames(ctx, s.db, []int64{admin.ID})
	if err != nil {
		return nil, err
	}
	admin.Roles = roleNamesOrEmpty(roles[admin.ID])
	return &admin, nil
}

// ListAdmins returns one page of admins matching f together with the total
// number of matches. Each admin carries all of its role names, not only the
// one used for filtering.
func (s *Store) ListAdmins(ctx context.Context, f AdminFilter) ([]model.Admin, int, error) {
	where, args := s.adminWhere(f)

	var total int
	countQ := s.db.Rebind("SELECT COUNT(*) FROM admins a" + where)
	if err := s.db.GetContext(ctx, &total, countQ, args...); err != nil {
		return nil, 0, fmt.Errorf("count admins: %w", err)
	}

	sort := f.Sort
	if sort.Column == "" {
		sort = query.Sort{Field: "id", Column: "id", Direction: "ASC"}
	}
	q := "SELECT " + adminColumns + " FROM admins a" + where + " " +
		query.BuildOrderSQL(sort.Clauses("id"), query.Qualify("a", s.dialect.quote))
	if page := s.dialect.paginate(f.Limit, f.Offset); page != "" {
		q += " " + page
	}

	admins := []model.Admin{}
	if err := s.db.SelectContext(ctx, &admins, s.db.Rebind(q), args...); err != nil {
		return nil, 0, fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		return admins, total, nil
	}

	ids := make([]int64, len(admins))
	for i := range admins {
		ids[i] = admins[i].ID
	}
	roles, err := s.loadRoleNames(ctx, s.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range admins {
		admins[i].Roles = roleNamesOrEmpty(roles[admins[i].ID])
	}
	return admins, total, nil
}

func (s *Store) adminWhere(f AdminFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Search != "" {
		pattern := strings.ToLower(query.ContainsPattern(f.Search, s.dialect.likeExtra))
		conds = append(conds, "(LOWER(a.email) LIKE ? ESCAPE '!' OR LOWER(a.name) LIKE ? ESCAPE '!')")
		args = append(args, pattern, pattern)
	}
	if f.Role != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM admin_roles ar JOIN roles r ON r.id = ar.role_id
			WHERE ar.admin_id = a.id AND r.name = ?)`)
		args = append(args, f.Role)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateAdmin writes the email, name and password hash of admin. When
// roleNames is non-nil the admin's roles are replaced by it (an empty slice
// removes every role); nil leaves roles untouched. UpdatedAt and Roles are
// refreshed on success.
func (s *Store) UpdateAdmin(ctx context.Context, admin *model.Admin, roleNames []string) error {
	admin.UpdatedAt = time.Now().UTC()

	const q = `UPDATE admins SET
		email = :email, name = :name, password_hash = :password_hash, updated_at = :updated_at
		WHERE id = :id`

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, q, admin)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("update admin: %w", err)
		}
		if err := affectedOne(result, "update admin"); err != nil {
			return err
		}

		if roleNames != nil {
			if err := s.setRoles(ctx, tx, admin.ID, roleNames); err != nil {
				return err
			}
		}
		roles, err := s.loadRoleNames(ctx, tx, []int64{admin.ID})
		if err != nil {
			return err
		}
		admin.Roles = roleNamesOrEmpty(roles[admin.ID])
		return nil
	})
}

// DeleteAdmin hard-deletes an admin. Role assignments cascade and activity
// entries keep their row with admin_id cleared.
func (s *Store) DeleteAdmin(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM admins WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	return affectedOne(result, "delete admin")
}

// CountAdmins returns the number of admin accounts.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// SetAdminRoles replaces every role of an admin with the named roles.
// Unknown names are ignored.
func (s *Store) SetAdminRoles(ctx context.Context, adminID int64, roleNames []string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COUNT(*) FROM admins WHERE id = ?"), adminID); err != nil {
			return fmt.Errorf("check admin: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if roleNames == nil {
			roleNames = []string{}
		}
		return s.setRoles(ctx, tx, adminID, roleNames)
	})
}

// setRoles replaces the admin's roles inside tx. A nil slice is a no-op.
func (s *Store) setRoles(ctx context.Context, tx *sqlx.Tx, adminID int64, roleNames []string) error {
	if roleNames == nil {
		return nil
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM admin_roles WHERE admin_id = ?"), adminID); err != nil {
		return fmt.Errorf("delete existing admin roles: %w", err)
	}

	names := uniqueNonEmpty(roleNames)
	if len(names) == 0 {
		return nil
	}

	q, args, err := sqlx.In("SELECT id FROM roles WHERE name IN (?)", names)
	if err != nil {
		return fmt.Errorf("build role lookup: %w", err)
	}
	var roleIDs []int64
	if err := tx.SelectContext(ctx, &roleIDs, tx.Rebind(q), args...); err != nil {
		return fmt.Errorf("lookup roles: %w", err)
	}

	now := time.Now().UTC()
	insertQ := tx.Rebind("INSERT INTO admin_roles (admin_id, role_id, created_at) VALUES (?, ?, ?)")
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, insertQ, adminID, roleID, now); err != nil {
			return fmt.Errorf("insert admin role: %w", err)
		}
	}
	return nil
}

// loadRoleNames returns the role names of each admin in ids, sorted by name.
func (s *Store) loadRoleNames(ctx context.Context, ext sqlx.ExtContext, ids []int64) (map[int64][]string, error) {
	q, args, err := sqlx.In(`SELECT ar.admin_id, r.name FROM admin_roles ar
		JOIN roles r ON r.id = ar.role_id
		WHERE ar.admin_id IN (?) ORDER BY r.name`, ids)
	if err != nil {
		return nil, fmt.Errorf("build role names query: %w", err)
	}

	var rows []struct {
		AdminID int64  `db:"admin_id"`
		Name    string `db:"name"`
	}
	if err := sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("load admin roles: %w", err)
	}

	out := make(map[int64][]string, len(ids))
	for _, r := range rows {
		out[r.AdminID] = append(out[r.AdminID], r.Name)
	}
	return out, nil
}

func roleNamesOrEmpty(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func uniqueNonEmpty(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
