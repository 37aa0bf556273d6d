package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/query"
	"github.com/getscaley/scaley/internal/store"
)

// Admin list paging limits.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	maxSearchLength = 255
)

var numericRef = regexp.MustCompile(`^\d+$`)

// CreateAdminInput is the body of an admin creation request.
type CreateAdminInput struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles"`
}

// UpdateAdminInput is a partial update; nil fields are left unchanged.
// Roles, when present, replaces the full role set.
type UpdateAdminInput struct {
	Email    *string   `json:"email"`
	Password *string   `json:"password"`
	Name     *string   `json:"name"`
	Roles    *[]string `json:"roles"`
}

func (in UpdateAdminInput) empty() bool {
	return in.Email == nil && in.Password == nil && in.Name == nil && in.Roles == nil
}

// ListAdminsParams selects one page of the admin list. Callers apply the
// DefaultPage and DefaultPageSize values for absent parameters.
type ListAdminsParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
	Sort     string
	Order    string
}

// AdminService implements admin CRUD on top of the store.
type AdminService struct {
	store  *store.Store
	hasher *Hasher
}

func NewAdminService(st *store.Store, hasher *Hasher) *AdminService {
	return &AdminService{store: st, hasher: hasher}
}

// Create validates input, hashes the password and stores the admin with
// whichever of the named roles exist.
func (s *AdminService) Create(ctx context.Context, in CreateAdminInput) (*model.Admin, error) {
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
	roles := in.Roles
	if roles == nil {
		roles = []string{}
	}
	if err := s.store.CreateAdmin(ctx, admin, roles); err != nil {
		return nil, classify(err)
	}
	return admin, nil
}

// List returns one page of admins.
func (s *AdminService) List(ctx context.Context, p ListAdminsParams) (*model.Page[model.Admin], error) {
	if p.Page < 1 {
		return nil, Validationf("page must be a positive integer")
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return nil, Validationf("pageSize must be between 1 and %d", MaxPageSize)
	}

	sort, err := query.ParseSort(p.Sort, p.Order, store.AdminSortColumns, "id")
	if err != nil {
		return nil, NewError(KindValidation, err.Error(), err)
	}

	search, err := query.SanitizeSearch(p.Search, maxSearchLength)
	if err != nil {
		return nil, Validationf("search: %v", err)
	}

	admins, total, err := s.store.ListAdmins(ctx, store.AdminFilter{
		Search: search,
		Role:   p.Role,
		Sort:   sort,
		Limit:  p.PageSize,
		Offset: (p.Page - 1) * p.PageSize,
	})
	if err != nil {
		return nil, Internal(err)
	}
	return &model.Page[model.Admin]{
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    total,
		Items:    admins,
	}, nil
}

// Get resolves ref as a numeric id when it is all digits and as a uuid
// otherwise.
func (s *AdminService) Get(ctx context.Context, ref string) (*model.Admin, error) {
	var (
		admin *model.Admin
		err   error
	)
	if numericRef.MatchString(ref) {
		id, perr := strconv.ParseInt(ref, 10, 64)
		if perr != nil {
			return nil, NewError(KindNotFound, "Not Found", store.ErrNotFound)
		}
		admin, err = s.store.GetAdmin(ctx, id)
	} else {
		admin, err = s.store.GetAdminByUUID(ctx, ref)
	}
	if err != nil {
		return nil, classify(err)
	}
	return admin, nil
}

// Update applies a partial update to the admin identified by ref.
func (s *AdminService) Update(ctx context.Context, ref string, in UpdateAdminInput) (*model.Admin, error) {
	if in.empty() {
		return nil, Validationf("At least one of email, password, name or roles is required")
	}

	admin, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		admin.Email = email
	}
	if in.Name != nil {
		name := trimName(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		admin.Name = name
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, classify(err)
		}
		admin.PasswordHash = hash
	}

	var roles []string
	if in.Roles != nil {
		roles = *in.Roles
		if roles == nil {
			roles = []string{}
		}
	}

	if err := s.store.UpdateAdmin(ctx, admin, roles); err != nil {
		return nil, classify(err)
	}
	return admin, nil
}

// Delete hard-deletes the admin identified by ref.
func (s *AdminService) Delete(ctx context.Context, ref string) error {
	admin, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAdmin(ctx, admin.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewError(KindNotFound, "Not Found", err)
		}
		return Internal(err)
	}
	return nil
}
