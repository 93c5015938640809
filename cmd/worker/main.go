package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/notifications/internal/bootstrap"
	"github.com/cassiomorais/notifications/internal/infrastructure/channels"
	infraRedis "github.com/cassiomorais/notifications/internal/infrastructure/redis"
	"github.com/cassiomorais/notifications/internal/repository/postgres"
	"github.com/cassiomorais/notifications/internal/service"
	"github.com/cassiomorais/notifications/pkg/retry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "notifications-worker", "notifications_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	templateRepo := postgres.NewTemplateRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	streamProducer := infraRedis.NewStreamProducer(
		app.Redis,
		app.Config.Redis.DLQStream,
		app.Config.Redis.ChatStream,
		app.Config.Redis.StreamMaxLen,
	)

	// --- Delivery ---
	sender, err := channels.NewFromConfig(app.Config.Sender, app.Config.SMTP, app.Metrics)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to build sender")
	}

	outboxCfg := app.Config.Outbox
	processor := service.NewOutboxProcessor(
		outboxRepo,
		service.NewTemplateRenderer(templateRepo),
		sender,
		streamProducer,
		service.ProcessorConfig{
			PollInterval: outboxCfg.PollInterval,
			BatchSize:    outboxCfg.BatchSize,
			MaxAttempts:  outboxCfg.MaxAttempts,
			Concurrency:  outboxCfg.Concurrency,
			ClaimTTL:     outboxCfg.ClaimTTL,
			SendTimeout:  outboxCfg.SendTimeout,
			Backoff: retry.Schedule{
				Initial:    outboxCfg.BackoffInitial,
				Max:        outboxCfg.BackoffMax,
				Multiplier: outboxCfg.BackoffMultiplier,
			},
		},
		service.NewOwner(app.Config.InstanceID),
		app.Metrics,
		app.Logger,
	)

	app.Logger.Info().
		Str("owner", processor.Owner()).
		Str("sender", sender.Name()).
		Dur("poll_interval", outboxCfg.PollInterval).
		Int("batch_size", outboxCfg.BatchSize).
		Int("concurrency", outboxCfg.Concurrency).
		Msg("Worker started, polling outbox...")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox processor.
	g.Go(func() error {
		return processor.Run(gCtx)
	})

	// 2. Metrics endpoint.
	if app.Config.Observability.EnableMetrics {
		metricsSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", outboxCfg.MetricsPort),
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	// 3. Expired idempotency keys.
	g.Go(func() error {
		return runIdempotencyCleanup(gCtx, app.Logger, idempotencyRepo, outboxCfg.CleanupInterval)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func runIdempotencyCleanup(
	ctx context.Context,
	logger zerolog.Logger,
	repo *postgres.IdempotencyRepository,
	interval time.Duration,
) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		deleted, err := repo.Cleanup(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Idempotency cleanup failed")
			}
			continue
		}
		if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("Expired idempotency keys removed")
		}
	}
}
