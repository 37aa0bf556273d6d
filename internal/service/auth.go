package service

import (
	"context"
	"errors"
	"time"

	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/store"
)

const invalidCredentials = "Invalid credentials"

// RegisterInput is the body of a self-registration request.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string             `json:"token"`
	TokenType string             `json:"tokenType"`
	ExpiresAt time.Time          `json:"expiresAt"`
	Admin     model.AdminSummary `json:"admin"`
}

// Profile is the caller's view of their own account.
type Profile struct {
	*model.Admin
	Permissions []string `json:"permissions"`
}

// AuthService handles registration, login, bearer token resolution and
// permission checks against the current role assignments.
type AuthService struct {
	store  *store.Store
	tokens *TokenService
	hasher *Hasher
}

func NewAuthService(st *store.Store, tokens *TokenService, hasher *Hasher) *AuthService {
	return &AuthService{store: st, tokens: tokens, hasher: hasher}
}

// Register creates an admin and attaches the "admin" role when it exists.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.Admin, error) {
	email := normalizeEmail(in.Email)
	name := trimName(in.Name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, classify(err)
	}

	admin := &model.Admin{Email: email, Name: name, PasswordHash: hash}
	if err := s.store.CreateAdmin(ctx, admin, []string{model.RoleAdmin}); err != nil {
		return nil, classify(err)
	}
	return admin, nil
}

// Login checks credentials and issues a bearer token. An unknown email and
// a wrong password produce the same Unauthenticated error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	admin, err := s.store.GetAdminByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.CompareMissing(password)
			return nil, Unauthenticated(invalidCredentials, nil)
		}
		return nil, Internal(err)
	}
	if !s.hasher.Compare(admin.PasswordHash, password) {
		return nil, Unauthenticated(invalidCredentials, nil)
	}

	token, expiresAt, err := s.tokens.Issue(admin.ID, admin.Roles, 0)
	if err != nil {
		return nil, Internal(err)
	}
	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		Admin:     admin.Summary(),
	}, nil
}

// Authenticate resolves a bearer token to the current admin record. A token
// whose admin has been deleted no longer authenticates.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.Admin, error) {
	if token == "" {
		return nil, Unauthenticated("Authentication required", nil)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, Unauthenticated("Token expired", err)
		}
		return nil, Unauthenticated("Invalid token", err)
	}
	id, err := claims.AdminID()
	if err != nil {
		return nil, Unauthenticated("Invalid token", err)
	}

	admin, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Unauthenticated("Admin no longer exists", nil)
		}
		return nil, Internal(err)
	}
	return admin, nil
}

// Authorize re-reads the admin's roles and checks perm against the union of
// their permissions. The roles embedded in the token are not consulted.
func (s *AuthService) Authorize(ctx context.Context, adminID int64, perm string) error {
	roles, err := s.store.GetAdminRoles(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Unauthenticated("Admin no longer exists", nil)
		}
		return Internal(err)
	}
	if !model.EffectivePermissions(roles).Allows(perm) {
		return Forbidden("Forbidden")
	}
	return nil
}

// Me returns the caller's profile with current roles and permissions.
func (s *AuthService) Me(ctx context.Context, adminID int64) (*Profile, error) {
	admin, err := s.store.GetAdmin(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Unauthenticated("Admin no longer exists", nil)
		}
		return nil, Internal(err)
	}
	roles, err := s.store.GetAdminRoles(ctx, adminID)
	if err != nil {
		return nil, classify(err)
	}
	return &Profile{Admin: admin, Permissions: model.EffectivePermissions(roles).List()}, nil
}

// classify converts store sentinels into caller-facing errors and wraps
// anything unexpected as Internal.
func classify(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrConflict):
		return NewError(KindConflict, "Email already in use", err)
	case errors.Is(err, store.ErrNotFound):
		return NewError(KindNotFound, "Not Found", err)
	}
	return Internal(err)
}
