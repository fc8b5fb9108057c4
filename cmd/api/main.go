package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/shopmate/internal/app"
	"github.com/noah-isme/shopmate/internal/config"
	"github.com/noah-isme/shopmate/internal/health"
	"github.com/noah-isme/shopmate/internal/notify"
	"github.com/noah-isme/shopmate/internal/obs"
	"github.com/noah-isme/shopmate/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := cfg.Obs.EnableTracing
	if tracing {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "shopmate-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracing = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Open(openCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	tasks := asynq.NewClient(deps.Tasks)
	defer func() {
		if err := tasks.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	h, err := buildHandlers(cfg, logger, deps.Store, deps.Redis, notify.AsynqEnqueuer{Client: tasks})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	var assistantLimiter *limiter.Limiter
	if assistantLimiter, err = ratelimit.New(deps.Redis, "ratelimit:assistant", cfg.AssistantRateLimit); err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.AssistantRateLimit).Msg("initialise assistant rate limit")
	}

	var metrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		metrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, nil)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr(),
		Handler: newRouter(routerDeps{
			cfg:      cfg,
			logger:   logger,
			redis:    deps.Redis,
			handlers: h,
			probes:   deps.Probes(),
			metrics:  metrics,
			tracing:  tracing,
			limiter:  assistantLimiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("docstore", cfg.DocstoreDriver).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("server draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}
}
