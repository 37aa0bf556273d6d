package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/getscaley/scaley/internal/server/render"
)

// IPAllowlist returns an HTTP middleware that rejects clients whose address
// is not covered by entries, each a single IP or a CIDR prefix. An empty
// list allows everyone.
func IPAllowlist(entries []string, errs *render.Errors) (func(http.Handler) http.Handler, error) {
	prefixes, err := parseAllowlist(entries)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		if len(prefixes) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(prefixes, clientIP(r)) {
				errs.Fail(w, http.StatusForbidden, "IP not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func parseAllowlist(entries []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid allowlist entry %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist entry %q: %w", e, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func allowed(prefixes []netip.Prefix, ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
