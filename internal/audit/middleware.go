package audit

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/shopmate/internal/common"
)

// HTTPRecorder records a request after it has been handled.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// Middleware records every request through next. Failed writes are reported through OnError and never fail the request.
func (rec HTTPRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec.Service == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		actor, _ := common.UserID(r.Context())
		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		entry := Entry{
			ActorID:   actor,
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    status,
			IP:        common.ClientIP(r),
			RequestID: middleware.GetReqID(r.Context()),
		}
		if _, err := rec.Service.Record(context.WithoutCancel(r.Context()), entry, route); err != nil && rec.OnError != nil {
			rec.OnError(err)
		}
	})
}
