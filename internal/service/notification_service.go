package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransactionManager runs fn in a transaction carried on ctx. Repository
// calls made with that ctx join it.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NotificationService is the producer-facing side of the outbox.
type NotificationService struct {
	repo      notification.Repository
	txManager TransactionManager
	metrics   *observability.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(
	repo notification.Repository,
	txManager TransactionManager,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		txManager: txManager,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Enqueue appends one pending record for the event. No delivery happens
// here; when ctx carries a transaction the insert joins it.
func (s *NotificationService) Enqueue(ctx context.Context, event notification.Event) (uuid.UUID, error) {
	rec, err := notification.NewRecord(event, s.now())
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("template", rec.TemplateKey).Msg("Failed to enqueue notification")
		return uuid.Nil, fmt.Errorf("%w: %w", domainErrors.ErrEnqueueFailed, err)
	}

	s.metrics.NotificationsEnqueued.WithLabelValues(rec.TemplateKey).Inc()
	s.logger.Debug().
		Str("notification_id", rec.ID.String()).
		Str("template", rec.TemplateKey).
		Msg("Notification enqueued")
	return rec.ID, nil
}

// EnqueueWithin runs fn and enqueues events in one transaction, so the
// notifications exist exactly when fn's writes commit. fn may be nil.
func (s *NotificationService) EnqueueWithin(ctx context.Context, fn func(ctx context.Context) error, events ...notification.Event) ([]uuid.UUID, error) {
	if len(events) == 0 {
		return nil, domainErrors.NewValidationError("events", "at least one event is required")
	}
	for i, e := range events {
		if e == nil {
			return nil, fmt.Errorf("event %d: %w", i, domainErrors.ErrUnknownEvent)
		}
	}

	var ids []uuid.UUID
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ids = ids[:0]
		if fn != nil {
			if err := fn(txCtx); err != nil {
				return err
			}
		}
		for _, e := range events {
			id, err := s.Enqueue(txCtx, e)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Get returns a single record.
func (s *NotificationService) Get(ctx context.Context, id uuid.UUID) (*notification.Record, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns records, newest first.
func (s *NotificationService) List(ctx context.Context, filter notification.ListFilter) ([]*notification.Record, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, domainErrors.NewValidationError("status", "unknown status")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, domainErrors.NewValidationError("limit", "must not be negative")
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Msg("Failed to list notifications")
	}
	return records, err
}
