package app

import (
	"context"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/autoparts-api/internal/auth"
	"github.com/noah-isme/autoparts-api/internal/cache"
	"github.com/noah-isme/autoparts-api/internal/cart"
	"github.com/noah-isme/autoparts-api/internal/common"
	"github.com/noah-isme/autoparts-api/internal/config"
	"github.com/noah-isme/autoparts-api/internal/favorites"
	"github.com/noah-isme/autoparts-api/internal/lock"
	"github.com/noah-isme/autoparts-api/internal/obs"
	"github.com/noah-isme/autoparts-api/internal/promotion"
	"github.com/noah-isme/autoparts-api/internal/quote"
	"github.com/noah-isme/autoparts-api/internal/repo"
	"github.com/noah-isme/autoparts-api/internal/resilience"
)

// TaskQueue is the asynq queue promotion boundary tasks are enqueued on.
const TaskQueue = "promotions"

// NewPostgres opens a traced pgx pool and verifies connectivity.
func NewPostgres(ctx context.Context, cfg *config.Config, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

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

// NewRedis opens a Redis client instrumented with OpenTelemetry.
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

// TaskRedisOpt derives the asynq connection from REDIS_URL.
func TaskRedisOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	return opt, nil
}

// NewLimiter builds a fixed-window limiter, e.g. "300-M", over Redis.
func NewLimiter(rdb *redis.Client, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", formatted, err)
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}
	return limiter.New(store, rate), nil
}

// Services is the domain object graph shared by the API and the worker.
type Services struct {
	Validate   *validator.Validate
	Verifier   *auth.Verifier
	Catalog    *repo.CatalogRepo
	Promotions *repo.PromotionRepo
	Breaker    *resilience.Breaker
	Cache      *promotion.CachedStore
	Resolver   *promotion.Resolver
	Admin      *promotion.Service
	Boundaries *promotion.BoundaryHandler
	Quoter     *quote.Quoter
	Carts      *cart.Service
	Favorites  *favorites.Service
}

// Build wires the services. tasks may be nil, in which case promotion
// boundaries are not scheduled and rely on the cache TTL alone.
func Build(cfg *config.Config, db repo.DB, rdb *redis.Client, tasks *asynq.Client, logger zerolog.Logger) *Services {
	s := &Services{
		Validate:   common.NewValidator(),
		Verifier:   auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTClockSkew),
		Catalog:    &repo.CatalogRepo{DB: db},
		Promotions: &repo.PromotionRepo{DB: db},
	}
	s.Breaker = resilience.NewBreaker(
		cfg.PromotionBreakerMinRequests,
		cfg.PromotionBreakerFailureRatio,
		cfg.PromotionBreakerOpenFor,
	).WithTarget("promotion-store").WithLogger(logger)

	guarded := promotion.NewGuardedStore(s.Promotions, s.Breaker)
	s.Cache = promotion.NewCachedStore(guarded, cache.NewJSON(rdb), cfg.PromotionCacheTTL, logger)
	s.Resolver = promotion.NewResolver(s.Catalog, s.Cache, logger)

	s.Admin = &promotion.Service{
		Store:       s.Promotions,
		Invalidator: s.Cache,
		Logger:      logger,
	}
	if tasks != nil {
		s.Admin.Scheduler = promotion.NewTaskScheduler(tasks, TaskQueue)
	}
	s.Boundaries = &promotion.BoundaryHandler{
		Store:       s.Promotions,
		Invalidator: s.Cache,
		Logger:      logger,
	}

	s.Quoter = &quote.Quoter{
		Resolver:   s.Resolver,
		TaxRateBps: cfg.PricingTaxRateBPS,
		Currency:   cfg.CurrencyCode,
		Logger:     logger,
	}
	s.Carts = &cart.Service{
		Store:   &cart.Store{R: rdb, TTL: cfg.CartTTL},
		Locker:  lock.Locker{R: rdb, RetryBackoff: 10 * time.Millisecond},
		Catalog: s.Catalog,
		Pricer:  s.Quoter,
		LockTTL: cfg.CartLockTTL,
		Logger:  logger,
	}
	s.Favorites = &favorites.Service{
		Store:   &favorites.Store{R: rdb},
		Catalog: s.Catalog,
		Pricer:  s.Quoter,
	}
	return s
}
