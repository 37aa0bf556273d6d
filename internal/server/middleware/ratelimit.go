package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/getscaley/scaley/internal/server/render"
)

// RateLimit returns an HTTP middleware that allows at most limit requests
// per client IP within window, using a sliding window counter. Rejected
// requests get a 429 JSON error.
func RateLimit(limit int, window time.Duration, errs *render.Errors) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			errs.Fail(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
		}),
	)
}
