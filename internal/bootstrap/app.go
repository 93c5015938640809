package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/notifications/internal/infrastructure/config"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/notifications/internal/infrastructure/redis"
	"github.com/cassiomorais/notifications/internal/repository/postgres"
	"github.com/cassiomorais/notifications/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// App holds the process-wide dependencies shared by the api and worker binaries.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics

	tracer *sdktrace.TracerProvider
}

// New loads configuration and opens every shared connection. On error
// nothing is left open.
func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: observability.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout).
			With().Str("service", serviceName).Str("instance_id", cfg.InstanceID).Logger(),
		Metrics: observability.NewMetrics(metricsNamespace, nil),
	}
	app.Logger.Info().Msg("Starting")

	if cfg.Observability.EnableTracing {
		app.startTracing(serviceName)
	}

	if err := app.connect(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// startTracing is best effort: a missing collector only costs spans.
func (a *App) startTracing(serviceName string) {
	tp, err := observability.InitTracer(serviceName, a.Config.Observability.JaegerEndpoint)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		return
	}
	a.tracer = tp
	a.Logger.Info().Str("endpoint", a.Config.Observability.JaegerEndpoint).Msg("Tracing enabled")
}

func (a *App) connect(ctx context.Context) error {
	db := &a.Config.Database

	if db.AutoMigrate {
		if err := migrations.Run(ctx, db.DatabaseURL(), db.MigrationsPath, migrations.Up, a.Logger); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	pool, err := postgres.NewPool(ctx, db)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.Pool = pool
	a.Logger.Info().Str("host", db.Host).Str("database", db.Database).Msg("Connected to PostgreSQL")

	rdb, err := infraRedis.NewClient(ctx, &a.Config.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.Redis = rdb
	a.Logger.Info().Str("addr", a.Config.Redis.RedisAddr()).Msg("Connected to Redis")
	return nil
}

// Close releases connections and flushes pending spans. Safe on a
// partially built App.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.tracer != nil {
		if err := observability.Shutdown(context.Background(), a.tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
}
