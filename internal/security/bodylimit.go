// Package security holds request hardening middleware.
package security

import (
	"net/http"

	"github.com/noah-isme/shopmate/internal/common"
)

// BodyLimit caps request bodies at Max bytes. Declared oversize bodies are
// rejected up front; undeclared ones are cut off while the handler reads them,
// which common.DecodeJSON reports as 413.
type BodyLimit struct {
	Max int64
}

// Middleware wraps the body with http.MaxBytesReader.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.WriteError(w, common.PayloadTooLarge(nil))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}
