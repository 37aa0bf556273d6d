package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/server/render"
	"github.com/getscaley/scaley/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the authenticated admin making the request, as resolved at
// authentication time. Roles is informational; permission checks re-read
// the store.
type Principal struct {
	AdminID int64
	UUID    string
	Email   string
	Name    string
	Roles   []string
}

// Authenticator resolves a bearer token to the current admin.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Admin, error)
}

// Authorizer checks a permission against an admin's current roles.
type Authorizer interface {
	Authorize(ctx context.Context, adminID int64, perm string) error
}

// Authenticate returns an HTTP middleware that requires a valid
// "Authorization: Bearer <token>" header whose subject still exists. On
// success a Principal is attached to the request context; otherwise a 401
// is written.
func Authenticate(auth Authenticator, errs *render.Errors) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				errs.Write(w, r, service.Unauthenticated("Authentication required", nil))
				return
			}

			admin, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				errs.Write(w, r, err)
				return
			}

			principal := &Principal{
				AdminID: admin.ID,
				UUID:    admin.UUID,
				Email:   admin.Email,
				Name:    admin.Name,
				Roles:   append([]string(nil), admin.Roles...),
			}
			setRequestAdmin(r.Context(), admin.ID)
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission returns an HTTP middleware that lets the request through
// only when the principal's current roles grant perm or "*". It must be used
// after Authenticate.
func RequirePermission(authz Authorizer, errs *render.Errors, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				errs.Write(w, r, service.Unauthenticated("Authentication required", nil))
				return
			}
			if err := authz.Authorize(r.Context(), principal.AdminID, perm); err != nil {
				errs.Write(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
// Callers must not modify the returned value.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
