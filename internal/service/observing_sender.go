package service

import (
	"context"
	"fmt"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// NamedObserver labels an observer for logs and metrics.
type NamedObserver struct {
	Name     string
	Observer chat.Observer
}

// ObservingSender decorates a chat.Sender: after a successful send every
// observer runs in registration order. Observer failures and panics are
// logged and counted, never returned.
type ObservingSender struct {
	inner     chat.Sender
	observers []NamedObserver
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

var _ chat.Sender = (*ObservingSender)(nil)

func NewObservingSender(inner chat.Sender, metrics *observability.Metrics, logger zerolog.Logger, observers ...NamedObserver) *ObservingSender {
	return &ObservingSender{
		inner:     inner,
		observers: observers,
		metrics:   metrics,
		logger:    observability.Component(logger, "observing_sender"),
	}
}

func (s *ObservingSender) Send(ctx context.Context, in chat.NewMessage, actorUserID string) (*chat.Message, error) {
	msg, err := s.inner.Send(ctx, in, actorUserID)
	if err != nil {
		return nil, err
	}
	s.metrics.MessagesSent.Inc()

	for _, o := range s.observers {
		if err := s.notify(ctx, o, msg); err != nil {
			s.metrics.ObserverFailures.WithLabelValues(o.Name).Inc()
			s.logger.Error().
				Err(err).
				Str("observer", o.Name).
				Str("message_id", msg.ID.String()).
				Msg("Message observer failed")
		}
	}
	return msg, nil
}

func (s *ObservingSender) notify(ctx context.Context, o NamedObserver, msg *chat.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return o.Observer.OnMessageSent(ctx, msg)
}
