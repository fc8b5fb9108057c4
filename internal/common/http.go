package common

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller's address, preferring the first X-Forwarded-For
// hop, then X-Real-IP, then RemoteAddr. Values that do not parse as an IP are
// skipped so a forged header cannot become a rate-limit or audit key.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = r.RemoteAddr
	}
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP"), host} {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.Unmap().String()
		}
	}
	return strings.TrimSpace(r.RemoteAddr)
}
