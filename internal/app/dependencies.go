// Package app opens the shared infrastructure both binaries run on.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/shopmate/internal/audit"
	"github.com/noah-isme/shopmate/internal/checkout"
	"github.com/noah-isme/shopmate/internal/config"
	"github.com/noah-isme/shopmate/internal/docstore"
	"github.com/noah-isme/shopmate/internal/health"
	"github.com/noah-isme/shopmate/internal/obs"
	"github.com/noah-isme/shopmate/internal/voucher"
)

// Dependencies holds the connections shared by the services of one process.
type Dependencies struct {
	Redis *redis.Client
	DB    *pgxpool.Pool
	Store docstore.Store
	Tasks asynq.RedisConnOpt
}

// Open connects Redis, and Postgres when it backs the document store. Migrations run before the store is returned.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	tasks, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	deps := &Dependencies{Redis: redis.NewClient(redisOpts), Tasks: tasks}
	if err := redisotel.InstrumentTracing(deps.Redis); err != nil {
		logger.Warn().Err(err).Msg("redis_tracing_disabled")
	}
	if cfg.Obs.EnablePrometheus {
		if err := redisotel.InstrumentMetrics(deps.Redis); err != nil {
			logger.Warn().Err(err).Msg("redis_metrics_disabled")
		}
	}
	if err := deps.Redis.Ping(ctx).Err(); err != nil {
		deps.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	switch cfg.DocstoreDriver {
	case config.DriverPostgres:
		if err := docstore.Migrate(cfg.DatabaseURL); err != nil {
			deps.Close()
			return nil, err
		}
		pool, err := openPool(ctx, cfg.DatabaseURL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.DB = pool
		deps.Store = docstore.NewPostgresStore(pool)
	default:
		deps.Store = NewRedisStore(deps.Redis)
	}
	logger.Info().Str("driver", cfg.DocstoreDriver).Msg("docstore_ready")
	return deps, nil
}

// NewRedisStore returns the Redis document store with indexes on the fields
// services filter by.
func NewRedisStore(client *redis.Client) *docstore.RedisStore {
	return docstore.NewRedisStore(client).
		WithIndex(checkout.Collection, "userId").
		WithIndex(voucher.Collection, "isActive").
		WithIndex(audit.Collection, "actorId", "resource")
}

func openPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "shopmate"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Probes returns the readiness checks for the open connections.
func (d *Dependencies) Probes() map[string]health.Probe {
	probes := map[string]health.Probe{
		"redis": func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() },
	}
	if d.DB != nil {
		probes["postgres"] = d.DB.Ping
	}
	return probes
}

// Close releases every connection. It is safe to call on a partially opened set.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
