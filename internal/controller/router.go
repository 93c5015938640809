package controller

import (
	"time"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	"github.com/cassiomorais/notifications/internal/infrastructure/config"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/notifications/internal/middleware"
	"github.com/cassiomorais/notifications/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Pool                *pgxpool.Pool
	RedisClient         *redis.Client
	NotificationService *service.NotificationService
	ChatSender          chat.Sender
	IdempotencyStore    customMW.IdempotencyStore
	Metrics             *observability.Metrics
	ExposeMetrics       bool
	Server              config.ServerConfig
	JWTSecret           string
	Logger              zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	requestTimeout := deps.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", customMW.IdempotencyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	notificationH := NewNotificationController(deps.NotificationService)
	chatH := NewChatController(deps.ChatSender)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.Server.RateLimit.Requests, deps.Server.RateLimit.Window))
		r.Use(customMW.RequireAuth(deps.JWTSecret))

		// Producers retry on 503; the key keeps a retried event from being stored twice.
		idempotencyMW := customMW.Idempotency(deps.IdempotencyStore, deps.Server.IdempotencyTTL, deps.Logger)

		// Notifications
		r.With(idempotencyMW).Post("/notifications/member-added", notificationH.MemberAdded)
		r.With(idempotencyMW).Post("/notifications/task-assigned", notificationH.TaskAssigned)
		r.With(idempotencyMW).Post("/notifications/mentioned", notificationH.Mentioned)
		r.With(idempotencyMW).Post("/notifications/task-due-soon", notificationH.TaskDueSoon)
		r.With(idempotencyMW).Post("/notifications/batch", notificationH.Batch)
		r.Get("/notifications/{id}", notificationH.Get)
		r.Get("/notifications", notificationH.List)

		// Chat
		r.With(idempotencyMW).Post("/conversations/{id}/messages", chatH.SendMessage)
	})

	return r
}
