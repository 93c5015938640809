package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/notifications/internal/bootstrap"
	"github.com/cassiomorais/notifications/internal/controller"
	"github.com/cassiomorais/notifications/internal/domain/chat"
	"github.com/cassiomorais/notifications/internal/domain/template"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/notifications/internal/infrastructure/redis"
	"github.com/cassiomorais/notifications/internal/repository/postgres"
	"github.com/cassiomorais/notifications/internal/service"
	"github.com/rs/zerolog"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "notifications-api", "notifications")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	templateRepo := postgres.NewTemplateRepository(app.Pool)
	directoryRepo := postgres.NewDirectoryRepository(app.Pool)
	chatRepo := postgres.NewChatRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)
	streamProducer := infraRedis.NewStreamProducer(
		app.Redis,
		app.Config.Redis.DLQStream,
		app.Config.Redis.ChatStream,
		app.Config.Redis.StreamMaxLen,
	)

	seedTemplates(ctx, app, templateRepo)

	// --- Services ---
	notificationService := service.NewNotificationService(outboxRepo, txManager, app.Metrics, app.Logger)
	mentionDetector := service.NewMentionDetector(
		directoryRepo,
		directoryRepo,
		chatRepo,
		notificationService,
		app.Config.Mention.ExcerptLength,
		app.Metrics,
		app.Logger,
	)
	storingSender := chat.NewStoringSender(chatRepo, streamProducer)
	storingSender.BroadcastFailed = func(ctx context.Context, msg *chat.Message, err error) {
		app.Metrics.BroadcastFailures.Inc()
		app.Logger.Error().Err(err).
			Str("message_id", msg.ID.String()).
			Str("conversation_id", msg.ConversationID.String()).
			Msg("Chat message stored but not broadcast")
	}
	chatSender := service.NewObservingSender(
		storingSender,
		app.Metrics,
		app.Logger,
		service.NamedObserver{Name: "mentions", Observer: mentionDetector},
	)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:                app.Pool,
		RedisClient:         app.Redis,
		NotificationService: notificationService,
		ChatSender:          chatSender,
		IdempotencyStore:    idempotencyRepo,
		Metrics:             app.Metrics,
		ExposeMetrics:       app.Config.Observability.EnableMetrics,
		Server:              app.Config.Server,
		JWTSecret:           app.Config.Auth.JWTSecret,
		Logger:              app.Logger,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	cancel()
	app.Logger.Info().Msg("Server exited")
}

// seedTemplates inserts the built-in templates that are missing. Only one
// replica seeds at a time; operator edits to existing rows are kept.
func seedTemplates(ctx context.Context, app *bootstrap.App, repo *postgres.TemplateRepository) {
	logger := observability.Component(app.Logger, "template_seed")
	lock := infraRedis.NewDistributedLock(app.Redis, "templates:seed", app.Config.Redis.SeedLockTTL)

	ran, err := infraRedis.RunExclusive(ctx, lock, func(ctx context.Context) error {
		inserted, err := repo.SeedMissing(ctx, template.Defaults())
		if err != nil {
			return err
		}
		logger.Info().Int("inserted", inserted).Msg("Templates seeded")
		return nil
	})
	logSeedResult(logger, ran, err)
}

func logSeedResult(logger zerolog.Logger, ran bool, err error) {
	switch {
	case err != nil:
		// rendering reports missing templates per record, so startup continues
		logger.Error().Err(err).Msg("Template seeding failed")
	case !ran:
		logger.Info().Msg("Another instance is seeding templates")
	}
}
