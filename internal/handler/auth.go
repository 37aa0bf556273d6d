package handler

import (
	"net/http"
	"strings"

	"github.com/getscaley/scaley/internal/server/middleware"
	"github.com/getscaley/scaley/internal/server/render"
	"github.com/getscaley/scaley/internal/service"
)

// AuthHandler serves registration, login and the caller's own profile.
type AuthHandler struct {
	auth *service.AuthService
	errs *render.Errors
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, errs *render.Errors) *AuthHandler {
	return &AuthHandler{auth: auth, errs: errs}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new admin account.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := readJSON(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	admin, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, admin)
}

// Login exchanges email and password for a bearer token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		h.errs.Write(w, r, service.Validationf("Email and password are required"))
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, res)
}

// Me returns the caller's profile with current roles and permissions.
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		h.errs.Write(w, r, service.Unauthenticated("Authentication required", nil))
		return
	}

	profile, err := h.auth.Me(r.Context(), principal.AdminID)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, profile)
}
