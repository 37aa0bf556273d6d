package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/getscaley/scaley/internal/model"
)

// ActivityRecorder accepts audit entries without blocking.
type ActivityRecorder interface {
	Record(entry model.ActivityLog) bool
}

// Activity returns an HTTP middleware that hands one audit entry per request
// to rec once the handler has finished. The entry carries the final status
// code and elapsed time; a panic is recorded as 500 and then re-raised for
// the recoverer. The actor is the admin resolved by Authenticate, if any.
func Activity(rec ActivityRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := newResponseWriter(w)
			r, info := withRequestInfo(r)

			defer func() {
				p := recover()
				status := ww.status
				if p != nil {
					status = http.StatusInternalServerError
				}

				entry := model.ActivityLog{
					Action:    r.Method + " " + r.URL.Path,
					Method:    r.Method,
					Path:      r.URL.Path,
					IP:        clientIP(r),
					UserAgent: r.UserAgent(),
					Metadata: model.ActivityMetadata{
						StatusCode: status,
						DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
						RequestID:  GetRequestID(r.Context()),
					},
					CreatedAt: start.UTC(),
				}
				if id, ok := info.admin(); ok {
					entry.AdminID = &id
				}
				rec.Record(entry)

				if p != nil {
					panic(p)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// clientIP returns the host part of r.RemoteAddr, which RealIP may already
// have replaced with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
