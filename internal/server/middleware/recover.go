package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getscaley/scaley/internal/server/render"
	"github.com/getscaley/scaley/internal/service"
)

// Recoverer returns an HTTP middleware that turns a handler panic into the
// generic 500 JSON envelope, logged through errs with the request id.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recoverer(errs *render.Errors) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(p)
				}
				errs.Write(w, r, service.Internal(fmt.Errorf("panic: %v", p)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
