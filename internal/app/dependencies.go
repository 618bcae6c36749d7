// Package app wires the shared infrastructure and domain services used by the
// API and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/camper-budget/internal/budget"
	"github.com/noah-isme/camper-budget/internal/cache"
	"github.com/noah-isme/camper-budget/internal/catalog"
	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/config"
	"github.com/noah-isme/camper-budget/internal/db"
	"github.com/noah-isme/camper-budget/internal/events"
	"github.com/noah-isme/camper-budget/internal/lock"
	"github.com/noah-isme/camper-budget/internal/obs"
	"github.com/noah-isme/camper-budget/internal/ratelimit"
	"github.com/noah-isme/camper-budget/internal/region"
	"github.com/noah-isme/camper-budget/internal/tasks"
)

// Dependencies enumerates the services shared across binaries.
type Dependencies struct {
	Config       *config.Config
	Logger       zerolog.Logger
	DB           *pgxpool.Pool
	Redis        redis.UniversalClient
	Validator    *validator.Validate
	LimiterStore limiter.Store
	TaskClient   *asynq.Client
	Bus          *events.Bus

	Catalog *catalog.Service
	Regions *region.Service
	Budgets *budget.Service
}

// New connects Postgres and Redis, applies migrations when enabled and builds
// the domain services. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, appName string) (*Dependencies, error) {
	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, appName, obs.PGXTracer{})
	if err != nil {
		return nil, err
	}
	d := &Dependencies{Config: cfg, Logger: logger, DB: pool, Validator: common.NewValidator()}

	redisClient, err := NewRedis(ctx, cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Redis = redisClient

	if d.LimiterStore, err = ratelimit.NewRedisStore(redisClient, "camper:ratelimit"); err != nil {
		d.Close()
		return nil, fmt.Errorf("init rate limit store: %w", err)
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	d.TaskClient = asynq.NewClient(redisOpt)

	d.Bus = &events.Bus{
		Store: events.PGStore{DB: pool},
		Notifiers: []events.Notifier{
			events.LogNotifier{Logger: logger},
			tasks.Enqueuer{
				Client:   d.TaskClient,
				Queue:    cfg.SummaryRefreshQueue,
				MaxRetry: cfg.SummaryRefreshMaxTry,
				Logger:   logger,
			},
		},
	}

	d.Catalog, err = catalog.NewService(catalog.ServiceConfig{
		Repository: catalog.PGRepository{DB: pool},
		Cache:      cache.New(redisClient, cfg.CatalogCacheTTL),
		Logger:     logger,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Regions = &region.Service{
		Repo:      region.PGRepository{DB: pool},
		Cache:     cache.New(redisClient, cfg.RegionCacheTTL),
		Validator: d.Validator,
		Logger:    logger,
	}
	d.Budgets, err = budget.NewService(budget.ServiceConfig{
		Repository: budget.PGRepository{Pool: pool},
		Catalog:    d.Catalog,
		TaxConfigs: d.Regions,
		Events:     d.Bus,
		Locker:     lock.Locker{R: redisClient, MaxWait: cfg.BudgetLockTTL},
		LockTTL:    cfg.BudgetLockTTL,
		Cache:      cache.New(redisClient, cfg.SummaryCacheTTL),
		Validator:  d.Validator,
		Logger:     logger,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// NewRedis connects a Redis client instrumented with OpenTelemetry.
func NewRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if cfg.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Close releases every connection held by d.
func (d *Dependencies) Close() error {
	var errs error
	if d.TaskClient != nil {
		errs = errors.Join(errs, d.TaskClient.Close())
	}
	if d.Redis != nil {
		errs = errors.Join(errs, d.Redis.Close())
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errs
}
