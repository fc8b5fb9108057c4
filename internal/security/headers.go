package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Headers sets hardening headers suited to a JSON API and decides response
// cacheability. Catalog reads may be cached by clients; everything else is per user.
type Headers struct {
	HSTS                  bool
	HSTSMaxAge            time.Duration
	HSTSIncludeSubdomains bool
	// PublicGETPrefixes lists path prefixes whose GET responses may be cached for PublicMaxAge.
	PublicGETPrefixes []string
	PublicMaxAge      time.Duration
}

// Middleware attaches the headers before next runs.
func (h Headers) Middleware(next http.Handler) http.Handler {
	hsts := h.hstsValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		headers.Set("Cache-Control", h.cacheControl(r))
		if hsts != "" && isHTTPS(r) {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) cacheControl(r *http.Request) string {
	if r.Method == http.MethodGet && h.PublicMaxAge > 0 {
		for _, prefix := range h.PublicGETPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return "public, max-age=" + strconv.Itoa(int(h.PublicMaxAge.Seconds()))
			}
		}
	}
	return "no-store"
}

func (h Headers) hstsValue() string {
	if !h.HSTS {
		return ""
	}
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}
	value := "max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

// isHTTPS also trusts X-Forwarded-Proto since TLS terminates at the load balancer.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
