package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/shopmate/internal/audit"
	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/config"
	"github.com/noah-isme/shopmate/internal/health"
	"github.com/noah-isme/shopmate/internal/obs"
	"github.com/noah-isme/shopmate/internal/ratelimit"
	"github.com/noah-isme/shopmate/internal/security"
)

type routerDeps struct {
	cfg      *config.Config
	logger   zerolog.Logger
	redis    *redis.Client
	handlers *handlers
	probes   map[string]health.Probe
	metrics  *obs.HTTPMetrics
	tracing  bool
	limiter  *limiter.Limiter
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.cfg
	h := d.handlers

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.tracing {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(d.metrics.Middleware)
	r.Use(common.IdentifyUser)
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", common.UserHeader, "Idempotency-Key"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{
		HSTS:              cfg.IsProduction(),
		PublicGETPrefixes: []string{"/api/v1/products", "/api/v1/vouchers"},
		PublicMaxAge:      time.Minute,
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if d.metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.EnablePprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Probes: d.probes}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	idem := common.Idem{R: d.redis, TTL: cfg.IdempotencyTTL}
	throttle := ratelimit.Handler{
		Limiter: d.limiter,
		OnError: func(err error) { d.logger.Warn().Err(err).Msg("rate_limit_store_failed") },
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", h.catalog.Products)
		v.Get("/products/{id}", h.catalog.ProductDetail)
		v.Get("/vouchers", h.vouchers.ListActive)

		v.Route("/carts/{id}", func(c chi.Router) {
			c.Get("/", h.carts.Get)
			c.Post("/items", h.carts.AddItem)
			c.Patch("/items/{productId}", h.carts.UpdateItem)
			c.Delete("/items/{productId}", h.carts.RemoveItem)
			c.Post("/quote", h.carts.Quote)
		})

		v.With(throttle.Middleware).Post("/assistant/messages", h.assistant.Message)

		v.Group(func(authR chi.Router) {
			authR.Use(common.RequireUser)
			authR.With(idem.Middleware).Post("/checkout", h.checkout.Checkout)
			authR.Get("/orders", h.checkout.Orders)
			authR.Get("/orders/{id}", h.checkout.Order)
			authR.Get("/users/me/vouchers", h.vouchers.ListSaved)
			authR.With(idem.Middleware).Post("/users/me/vouchers", h.vouchers.Save)
			authR.Get("/users/me/notifications", h.notifications.List)
			authR.Get("/users/me/favorites", h.favorites.List)
			authR.Post("/users/me/favorites", h.favorites.Toggle)
			authR.Get("/users/me/favorites/{productId}", h.favorites.Check)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(common.RequireUser)
			admin.Use(requireAdmin(cfg.AdminUserIDs))
			admin.Get("/audit-logs", h.audit.List)
			admin.With(audit.HTTPRecorder{
				Service: h.auditLog,
				OnError: func(err error) { d.logger.Warn().Err(err).Msg("audit_record_failed") },
			}.Middleware).Post("/vouchers", h.vouchers.Create)
		})
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// requireAdmin admits only the user ids listed in ADMIN_USER_IDS.
func requireAdmin(ids []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := common.UserID(r.Context())
			if !slices.Contains(ids, userID) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return http.StripPrefix("/debug/pprof", mux)
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
