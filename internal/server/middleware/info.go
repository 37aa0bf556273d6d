package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
)

type requestInfoKey struct{}

// requestInfo is a per-request slot shared between the outer wrappers
// (access log, activity) and Authenticate, which runs deeper in the chain
// on a derived context the outer wrappers cannot see.
type requestInfo struct {
	adminID atomic.Int64
}

// withRequestInfo returns r carrying a requestInfo, reusing one installed by
// an outer middleware.
func withRequestInfo(r *http.Request) (*http.Request, *requestInfo) {
	if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
		return r, info
	}
	info := &requestInfo{}
	return r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)), info
}

func setRequestAdmin(ctx context.Context, id int64) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.adminID.Store(id)
	}
}

func (i *requestInfo) admin() (int64, bool) {
	id := i.adminID.Load()
	return id, id != 0
}
