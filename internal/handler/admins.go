package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getscaley/scaley/internal/server/render"
	"github.com/getscaley/scaley/internal/service"
)

// AdminHandler serves admin CRUD. Permission checks happen in middleware
// before these handlers run.
type AdminHandler struct {
	admins *service.AdminService
	errs   *render.Errors
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admins *service.AdminService, errs *render.Errors) *AdminHandler {
	return &AdminHandler{admins: admins, errs: errs}
}

// List returns one page of admins.
// GET /api/admins?page=&pageSize=&search=&role=&sort=&order=
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	result, err := h.admins.List(r.Context(), service.ListAdminsParams{
		Page:     page,
		PageSize: pageSize,
		Search:   queryString(r, "search"),
		Role:     queryString(r, "role"),
		Sort:     queryString(r, "sort"),
		Order:    queryString(r, "order"),
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, result)
}

// Create adds a new admin.
// POST /api/admins
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAdminInput
	if err := readJSON(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	admin, err := h.admins.Create(r.Context(), req)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, admin)
}

// Get returns a single admin by numeric id or uuid.
// GET /api/admins/{idOrUuid}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	admin, err := h.admins.Get(r.Context(), chi.URLParam(r, "idOrUuid"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, admin)
}

// Update applies a partial update.
// PUT /api/admins/{idOrUuid}
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateAdminInput
	if err := readJSON(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	admin, err := h.admins.Update(r.Context(), chi.URLParam(r, "idOrUuid"), req)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, admin)
}

// Delete removes an admin.
// DELETE /api/admins/{idOrUuid}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.admins.Delete(r.Context(), chi.URLParam(r, "idOrUuid")); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
