// Package render writes JSON responses and translates classified errors
// into the API error envelope. Handlers and middleware share it so every
// failure is rendered by the same code.
package render

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/service"
)

// JSON serializes v as JSON and writes it with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Errors renders errors. Detail is included in responses only when
// Development is set.
type Errors struct {
	logger      *slog.Logger
	development bool
}

func NewErrors(logger *slog.Logger, development bool) *Errors {
	if logger == nil {
		logger = slog.Default()
	}
	return &Errors{logger: logger, development: development}
}

// Write classifies err and writes the matching status and envelope.
// Internal errors are logged with full detail and shown to the caller as a
// generic message.
func (e *Errors) Write(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := kind.HTTPStatus()

	if kind == service.KindInternal {
		e.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", w.Header().Get("X-Request-ID"),
			"error", err,
		)
	}

	resp := model.ErrorResponse{
		Status:  statusWord(status),
		Message: service.MessageOf(err),
	}
	if e.development {
		resp.Detail = err.Error()
	}
	JSON(w, status, resp)
}

// Fail writes an error envelope for a failure detected outside the service
// layer (routing, rate limiting, IP filtering).
func (e *Errors) Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, model.ErrorResponse{Status: statusWord(status), Message: message})
}

func statusWord(status int) string {
	if status >= 500 {
		return "error"
	}
	return "fail"
}
