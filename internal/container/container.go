package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/formguard/internal/analytics"
	analyticsstore "github.com/serroba/formguard/internal/analytics/store"
	"github.com/serroba/formguard/internal/handlers"
	"github.com/serroba/formguard/internal/health"
	"github.com/serroba/formguard/internal/metrics"
	"github.com/serroba/formguard/internal/middleware"
	"github.com/serroba/formguard/internal/ratelimit"
	"github.com/serroba/formguard/internal/store"
	"go.uber.org/zap"
)

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"

	visitorIDLength = 21
)

// Redis owns the shared client and closes it on injector shutdown.
type Redis struct {
	*redis.Client
}

func (r *Redis) Shutdown() error {
	return r.Close()
}

// Postgres owns the shared pool and closes it on injector shutdown.
type Postgres struct {
	*pgxpool.Pool
}

func (p *Postgres) Shutdown() error {
	p.Close()

	return nil
}

// LoggerPackage provides the application logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat)
	})
}

// RedisPackage provides the shared Redis client.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)

		return &Redis{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// PostgresPackage provides the connection pool with migrations applied.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Postgres, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if err := store.Migrate(ctx, pool, logger); err != nil {
			pool.Close()

			return nil, err
		}

		return &Postgres{Pool: pool}, nil
	})
}

// StoragePackage provides the rate limit storage medium selected by Options.Storage.
func StoragePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Storage, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.Storage {
		case StorageMemory, "":
			return store.NewMemoryStorage(), nil
		case StorageRedis:
			client := do.MustInvoke[*Redis](i)

			return store.NewRedisStorage(client.Client, opts.RedisPrefix, opts.RecordTTL()), nil
		case StoragePostgres:
			pg, err := do.Invoke[*Postgres](i)
			if err != nil {
				return nil, err
			}

			return store.NewPostgresStorage(pg.Pool), nil
		default:
			return nil, fmt.Errorf("unknown storage %q", opts.Storage)
		}
	})
}

// MetricsPackage provides the Prometheus collector.
func MetricsPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*metrics.Collector, error) {
		return metrics.New(), nil
	})
}

// PublisherPackage provides the analytics publisher over Redis streams.
func PublisherPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*analytics.Publisher, error) {
		client := do.MustInvoke[*Redis](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: client.Client,
		}, NewWatermillLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create redisstream publisher: %w", err)
		}

		return analytics.NewPublisher(publisher, logger), nil
	})
}

// ConsumerPackage provides the analytics consumer over Redis streams.
func ConsumerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*analytics.Consumer, error) {
		opts := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*Redis](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client.Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: opts.ConsumerGroup,
		}, NewWatermillLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create redisstream subscriber: %w", err)
		}

		return analytics.NewConsumer(subscriber, analyticsstore.NewNoop(logger), logger), nil
	})
}

// RateLimitPackage provides the registry of per-visitor limiters, wired to
// metrics and, when enabled, to the analytics publisher.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*ratelimit.Registry, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		storage := do.MustInvoke[ratelimit.Storage](i)
		collector := do.MustInvoke[*metrics.Collector](i)

		cfg := ratelimit.Config{
			MaxAttempts: opts.MaxAttempts,
			Window:      opts.Window(),
		}

		limiterOpts := []ratelimit.Option{
			ratelimit.WithLogger(logger),
			ratelimit.WithObserver(collector),
		}

		if opts.Events {
			publisher := do.MustInvoke[*analytics.Publisher](i)
			normalized, err := cfg.Normalize()
			if err != nil {
				return nil, err
			}

			limiterOpts = append(limiterOpts,
				ratelimit.WithOnLimitExceeded(publisher.LimitExceededHook(normalized.MaxAttempts)),
				ratelimit.WithReporter(publisher.Report),
			)
		}

		return ratelimit.NewRegistry(storage, cfg, opts.RegistrySize, limiterOpts...)
	})
}

// HTTPPackage provides the router and the Huma API with all routes registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		registry := do.MustInvoke[*ratelimit.Registry](i)
		collector := do.MustInvoke[*metrics.Collector](i)

		newVisitorID, err := nanoid.Standard(visitorIDLength)
		if err != nil {
			return nil, err
		}

		router.Handle("/metrics", collector.Handler())

		api := humachi.New(router, huma.DefaultConfig("Formguard", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api, newVisitorID),
			middleware.Throttle(api, registry, logger),
		)

		handlers.RegisterRoutes(api,
			handlers.NewAttemptsHandler(registry, logger),
			handlers.NewContactHandler(logger),
		)
		health.RegisterRoutes(api, health.NewHandler(healthChecks(i, opts)))

		return api, nil
	})
}

func healthChecks(i *do.Injector, opts *Options) map[string]health.Checker {
	checks := map[string]health.Checker{}

	if checker, ok := do.MustInvoke[ratelimit.Storage](i).(health.Checker); ok {
		checks["storage"] = checker
	}

	if opts.Events {
		checks["events"] = health.NewRedisChecker(do.MustInvoke[*Redis](i).Client)
	}

	return checks
}
