package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/server/render"
	"github.com/getscaley/scaley/internal/service"
	"github.com/getscaley/scaley/internal/store"
)

// SystemHandler serves health, role listing and the activity log.
type SystemHandler struct {
	store *store.Store
	errs  *render.Errors
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(st *store.Store, errs *render.Errors) *SystemHandler {
	return &SystemHandler{store: st, errs: errs}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports liveness and database reachability.
// GET /api/health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		render.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Timestamp: time.Now().UTC()})
		return
	}
	render.JSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

// Roles lists every role with its permissions.
// GET /api/roles
func (h *SystemHandler) Roles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		h.errs.Write(w, r, service.Internal(err))
		return
	}
	render.JSON(w, http.StatusOK, map[string]interface{}{"items": roles})
}

// Activity returns one page of the activity log, newest first.
// GET /api/activity?page=&pageSize=&adminId=
func (h *SystemHandler) Activity(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if page < 1 {
		h.errs.Write(w, r, service.Validationf("page must be a positive integer"))
		return
	}
	if pageSize < 1 || pageSize > service.MaxPageSize {
		h.errs.Write(w, r, service.Validationf("pageSize must be between 1 and %d", service.MaxPageSize))
		return
	}

	filter := store.ActivityFilter{Limit: pageSize, Offset: (page - 1) * pageSize}
	if raw := queryString(r, "adminId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.errs.Write(w, r, service.Validationf("adminId must be a positive integer"))
			return
		}
		filter.AdminID = &id
	}

	entries, total, err := h.store.ListActivityLogs(r.Context(), filter)
	if err != nil {
		h.errs.Write(w, r, service.Internal(err))
		return
	}
	render.JSON(w, http.StatusOK, model.Page[model.ActivityLog]{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Items:    entries,
	})
}
