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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/toko-pricing/internal/cache"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/quote"
	"github.com/noah-isme/toko-pricing/internal/repo"
	"github.com/noah-isme/toko-pricing/internal/resilience"
)

// Dependencies holds the connections and shared services of one process.
type Dependencies struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Repo      *repo.Repository
	TaxPools  cache.TaxPoolCache
	Validator *validator.Validate
	RedisOpt  asynq.RedisConnOpt
}

// Options tunes Open for the calling command.
type Options struct {
	Component      string
	RedisMetrics   bool
	Logger         zerolog.Logger
	ConnectTimeout time.Duration
}

// Open connects Postgres and Redis and builds the shared services.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Dependencies, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := OpenPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns, opts.Component)
	if err != nil {
		return nil, err
	}
	rdb, err := OpenRedis(ctx, cfg.RedisURL, opts.RedisMetrics, opts.Logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("parse redis uri for tasks: %w", err)
	}

	breaker := resilience.NewBreaker("tax_pool_cache", 20, 0.5, 30*time.Second).WithLogger(opts.Logger)
	return &Dependencies{
		DB:        pool,
		Redis:     rdb,
		Repo:      repo.New(pool),
		TaxPools:  cache.TaxPoolCache{Cache: cache.New(rdb, cfg.TaxPoolCacheTTL).WithBreaker(breaker)},
		Validator: quote.NewValidator(),
		RedisOpt:  redisOpt,
	}, nil
}

// OpenPostgres returns a traced pgx pool that has answered a ping.
func OpenPostgres(ctx context.Context, databaseURL string, maxConns int32, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if appName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
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

// OpenRedis returns an otel-instrumented client that has answered a ping.
// Instrumentation failures are logged and do not fail startup.
func OpenRedis(ctx context.Context, redisURL string, withMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
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

// Close releases every connection.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		return d.Redis.Close()
	}
	return nil
}

// RunMigrations applies the embedded schema when enabled.
func RunMigrations(cfg *config.Config, logger zerolog.Logger) error {
	if !cfg.MigrateOnStart {
		return nil
	}
	if err := repo.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Msg("migrations applied")
	return nil
}

// Meter returns the global OpenTelemetry meter for name.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
