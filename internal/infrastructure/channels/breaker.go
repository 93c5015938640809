package channels

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker around a channel.
type BreakerSettings struct {
	// Threshold is the number of consecutive transient failures that opens the circuit.
	Threshold int
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
}

// BreakerSender guards a channel with a circuit breaker. Permanent
// rejections are the recipient's fault, so they never trip it.
type BreakerSender struct {
	inner   notification.Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
	metrics *observability.Metrics
}

func NewBreakerSender(inner notification.Sender, settings BreakerSettings, metrics *observability.Metrics) *BreakerSender {
	threshold := uint32(settings.Threshold)
	if threshold == 0 {
		threshold = 5
	}

	s := &BreakerSender{inner: inner, metrics: metrics}
	s.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domainErrors.IsPermanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			if s.metrics != nil {
				s.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if metrics != nil {
		metrics.CircuitBreakerState.WithLabelValues(inner.Name()).Set(float64(gobreaker.StateClosed))
	}
	return s
}

func (s *BreakerSender) Name() string { return s.inner.Name() }

// State exposes the breaker state for health reporting.
func (s *BreakerSender) State() gobreaker.State { return s.breaker.State() }

func (s *BreakerSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.inner.Send(ctx, to, subject, htmlBody)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.record("rejected")
		return fmt.Errorf("%s: %v: %w", s.inner.Name(), err, domainErrors.ErrChannelUnavailable)
	}
	if err != nil {
		s.record("failure")
		return err
	}
	s.record("success")
	return nil
}

func (s *BreakerSender) record(result string) {
	if s.metrics != nil {
		s.metrics.CircuitBreakerRequests.WithLabelValues(s.inner.Name(), result).Inc()
	}
}
