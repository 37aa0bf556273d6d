package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/store"
)

// Credentials of the superadmin seeded into an empty development database.
const (
	DevAdminEmail    = "admin@example.com"
	DevAdminPassword = "admin123"
	DevAdminName     = "Admin"
)

// Seeder bootstraps roles and the first superadmin.
type Seeder struct {
	store  *store.Store
	hasher *Hasher
	logger *slog.Logger
}

func NewSeeder(st *store.Store, hasher *Hasher, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: st, hasher: hasher, logger: logger}
}

// EnsureDefaultRoles creates the superadmin and admin roles when missing.
// Existing roles keep their permissions.
func (s *Seeder) EnsureDefaultRoles(ctx context.Context) error {
	for _, r := range model.DefaultRoles() {
		role := r
		created, err := s.store.EnsureRole(ctx, &role)
		if err != nil {
			return fmt.Errorf("ensure role %s: %w", r.Name, err)
		}
		if created {
			s.logger.Info("created role", "role", role.Name, "permissions", role.Permissions)
		}
	}
	return nil
}

// SeedSuperAdmin creates an admin holding the superadmin role. When the
// email is already registered the existing admin is returned unchanged and
// created is false.
func (s *Seeder) SeedSuperAdmin(ctx context.Context, email, password, name string) (admin *model.Admin, created bool, err error) {
	email = normalizeEmail(email)
	name = trimName(name)
	if err := validateEmail(email); err != nil {
		return nil, false, err
	}

	existing, err := s.store.GetAdminByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	if err := validatePassword(password); err != nil {
		return nil, false, err
	}
	if err := validateName(name); err != nil {
		return nil, false, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}

	admin = &model.Admin{Email: email, Name: name, PasswordHash: hash}
	if err := s.store.CreateAdmin(ctx, admin, []string{model.RoleSuperAdmin}); err != nil {
		return nil, false, classify(err)
	}
	s.logger.Info("created superadmin", "email", admin.Email, "id", admin.ID)
	return admin, true, nil
}

// SeedDevelopment ensures the default roles and, when no admin exists yet,
// creates the development superadmin.
func (s *Seeder) SeedDevelopment(ctx context.Context) error {
	if err := s.EnsureDefaultRoles(ctx); err != nil {
		return err
	}
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, _, err := s.SeedSuperAdmin(ctx, DevAdminEmail, DevAdminPassword, DevAdminName); err != nil {
		return err
	}
	s.logger.Warn("seeded development superadmin; change its password before exposing this server",
		"email", DevAdminEmail)
	return nil
}
