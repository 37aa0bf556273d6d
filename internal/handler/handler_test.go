package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/server/middleware"
	"github.com/getscaley/scaley/internal/server/render"
	"github.com/getscaley/scaley/internal/service"
	"github.com/getscaley/scaley/internal/store"
)

const testPassword = "supersecretpassword"

// testEnv holds shared state for handler tests.
type testEnv struct {
	store  *store.Store
	auth   *service.AuthService
	router chi.Router
}

// newTestEnv creates an in-memory store and a router with the handlers
// mounted without auth middleware. Requests carrying an X-Test-Admin header
// get a principal for that admin id.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hasher := service.NewHasher(4)
	tokens := service.NewTokenService("test-secret-for-handler-tests", "scaley", time.Hour)
	auth := service.NewAuthService(st, tokens, hasher)
	if err := service.NewSeeder(st, hasher, nil).EnsureDefaultRoles(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultRoles: %v", err)
	}

	errs := render.NewErrors(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	authH := NewAuthHandler(auth, errs)
	adminH := NewAdminHandler(service.NewAdminService(st, hasher), errs)
	sysH := NewSystemHandler(st, errs)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get("X-Test-Admin"); raw != "" {
				var id int64
				json.Unmarshal([]byte(raw), &id)
				ctx := context.WithValue(r.Context(), middleware.AuthPrincipalKey, &middleware.Principal{AdminID: id})
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", sysH.Health)
		r.Get("/roles", sysH.Roles)
		r.Get("/activity", sysH.Activity)

		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Get("/auth/me", authH.Me)

		r.Get("/admins", adminH.List)
		r.Post("/admins", adminH.Create)
		r.Get("/admins/{idOrUuid}", adminH.Get)
		r.Put("/admins/{idOrUuid}", adminH.Update)
		r.Delete("/admins/{idOrUuid}", adminH.Delete)
	})

	return &testEnv{store: st, auth: auth, router: r}
}

// seedAdmin registers an admin holding the admin role.
func (e *testEnv) seedAdmin(t *testing.T, email string) *model.Admin {
	t.Helper()
	admin, err := e.auth.Register(context.Background(), service.RegisterInput{
		Email:    email,
		Password: testPassword,
		Name:     "Test Admin",
	})
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/auth/register", toJSON(t, map[string]string{
		"email": "new@example.com", "password": testPassword, "name": "Newbie",
	}))
	assertStatus(t, rr, http.StatusCreated)

	var raw map[string]interface{}
	decodeJSON(t, rr, &raw)
	if raw["email"] != "new@example.com" {
		t.Errorf("email = %v", raw["email"])
	}
	if _, ok := raw["passwordHash"]; ok {
		t.Error("password hash serialized")
	}
	if strings.Contains(rr.Body.String(), testPassword) {
		t.Error("plaintext password echoed")
	}
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "taken@example.com")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"email":`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"invalid email", `{"email":"nope","password":"supersecret","name":"Nope"}`, http.StatusBadRequest},
		{"duplicate email", `{"email":"taken@example.com","password":"supersecret","name":"Again"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/auth/register", strings.NewReader(tt.body))
			assertStatus(t, rr, tt.want)

			var resp model.ErrorResponse
			decodeJSON(t, rr, &resp)
			if resp.Status != "fail" || resp.Message == "" {
				t.Errorf("error body = %+v", resp)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "admin@example.com")

	rr := env.do(t, "POST", "/api/auth/login", toJSON(t, map[string]string{
		"email": "admin@example.com", "password": testPassword,
	}))
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token     string    `json:"token"`
		TokenType string    `json:"tokenType"`
		ExpiresAt time.Time `json:"expiresAt"`
		Admin     struct {
			ID    int64    `json:"id"`
			Email string   `json:"email"`
			Roles []string `json:"roles"`
		} `json:"admin"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" || resp.TokenType != "Bearer" {
		t.Errorf("token = %q type = %q", resp.Token, resp.TokenType)
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Errorf("expiresAt = %v, want future", resp.ExpiresAt)
	}
	if resp.Admin.ID != admin.ID || resp.Admin.Email != "admin@example.com" {
		t.Errorf("admin = %+v", resp.Admin)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "admin@example.com")

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing password", map[string]string{"email": "admin@example.com"}, http.StatusBadRequest},
		{"wrong password", map[string]string{"email": "admin@example.com", "password": "wrongpassword"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "nobody@example.com", "password": testPassword}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/auth/login", toJSON(t, tt.body))
			assertStatus(t, rr, tt.want)
		})
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "me@example.com")

	rr := env.do(t, "GET", "/api/auth/me", nil, "X-Test-Admin", jsonInt(admin.ID))
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Email       string   `json:"email"`
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Email != "me@example.com" {
		t.Errorf("email = %q", resp.Email)
	}
	if len(resp.Roles) != 1 || resp.Roles[0] != model.RoleAdmin {
		t.Errorf("roles = %v", resp.Roles)
	}
	if len(resp.Permissions) != 3 {
		t.Errorf("permissions = %v, want 3 entries", resp.Permissions)
	}

	rr = env.do(t, "GET", "/api/auth/me", nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func jsonInt(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

func TestAdminCRUD(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/admins", toJSON(t, map[string]interface{}{
		"email": "crud@example.com", "password": testPassword, "name": "Crud", "roles": []string{"admin", "ghost"},
	}))
	assertStatus(t, rr, http.StatusCreated)
	var created model.Admin
	decodeJSON(t, rr, &created)
	if len(created.Roles) != 1 || created.Roles[0] != "admin" {
		t.Errorf("roles = %v, want [admin]", created.Roles)
	}

	rr = env.do(t, "GET", "/api/admins/"+created.UUID, nil)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "PUT", "/api/admins/"+jsonInt(created.ID), strings.NewReader(`{"name":"Renamed","roles":[]}`))
	assertStatus(t, rr, http.StatusOK)
	var updated model.Admin
	decodeJSON(t, rr, &updated)
	if updated.Name != "Renamed" || len(updated.Roles) != 0 {
		t.Errorf("updated = %+v", updated)
	}

	rr = env.do(t, "PUT", "/api/admins/"+created.UUID, strings.NewReader(`{}`))
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "DELETE", "/api/admins/"+created.UUID, nil)
	assertStatus(t, rr, http.StatusNoContent)
	if rr.Body.Len() != 0 {
		t.Errorf("204 with body %q", rr.Body.String())
	}

	rr = env.do(t, "DELETE", "/api/admins/"+created.UUID, nil)
	assertStatus(t, rr, http.StatusNotFound)
	rr = env.do(t, "GET", "/api/admins/"+jsonInt(created.ID), nil)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestAdminListQuery(t *testing.T) {
	env := newTestEnv(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		env.seedAdmin(t, email)
	}

	rr := env.do(t, "GET", "/api/admins?page=1&pageSize=2&sort=email&order=desc", nil)
	assertStatus(t, rr, http.StatusOK)
	var page model.Page[model.Admin]
	decodeJSON(t, rr, &page)
	if page.Total != 3 || page.Page != 1 || page.PageSize != 2 || len(page.Items) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Items[0].Email != "c@example.com" {
		t.Errorf("first = %s, want c@example.com", page.Items[0].Email)
	}

	rr = env.do(t, "GET", "/api/admins", nil)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &page)
	if page.Page != service.DefaultPage || page.PageSize != service.DefaultPageSize {
		t.Errorf("defaults = %d/%d", page.Page, page.PageSize)
	}

	for _, q := range []string{"pageSize=101", "pageSize=abc", "page=0", "sort=password", "order=up"} {
		t.Run(q, func(t *testing.T) {
			assertStatus(t, env.do(t, "GET", "/api/admins?"+q, nil), http.StatusBadRequest)
		})
	}
}

// ---------------------------------------------------------------------------
// System
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/health", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" || resp.Timestamp.IsZero() {
		t.Errorf("health = %+v", resp)
	}
}

func TestRoles(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/roles", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Items []model.Role `json:"items"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Items) != 2 || resp.Items[0].Name != "admin" || resp.Items[1].Name != "superadmin" {
		t.Errorf("roles = %+v", resp.Items)
	}
}

func TestActivity(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "actor@example.com")
	ctx := context.Background()
	for _, id := range []*int64{&admin.ID, nil, &admin.ID} {
		if err := env.store.CreateActivityLog(ctx, &model.ActivityLog{AdminID: id, Action: "GET /api/health", Method: "GET", Path: "/api/health"}); err != nil {
			t.Fatalf("CreateActivityLog: %v", err)
		}
	}

	rr := env.do(t, "GET", "/api/activity?adminId="+jsonInt(admin.ID), nil)
	assertStatus(t, rr, http.StatusOK)
	var page model.Page[model.ActivityLog]
	decodeJSON(t, rr, &page)
	if page.Total != 2 || len(page.Items) != 2 {
		t.Errorf("page = %+v", page)
	}

	assertStatus(t, env.do(t, "GET", "/api/activity?adminId=x", nil), http.StatusBadRequest)
	assertStatus(t, env.do(t, "GET", "/api/activity?pageSize=500", nil), http.StatusBadRequest)
}
