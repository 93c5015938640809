package channels

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
)

// Delivery is a message accepted by MockSender.
type Delivery struct {
	To       string
	Subject  string
	HTMLBody string
	SentAt   time.Time
}

// MockSender is a configurable in-process channel for development and tests.
type MockSender struct {
	name          string
	failureRate   float64 // 0.0 to 1.0, transient
	permanentRate float64 // 0.0 to 1.0
	latency       time.Duration

	mu   sync.Mutex
	sent []Delivery
}

// MockSenderOption configures a MockSender.
type MockSenderOption func(*MockSender)

// WithFailureRate sets the probability that a send fails transiently.
func WithFailureRate(rate float64) MockSenderOption {
	return func(s *MockSender) { s.failureRate = rate }
}

// WithPermanentFailureRate sets the probability that a send is rejected.
func WithPermanentFailureRate(rate float64) MockSenderOption {
	return func(s *MockSender) { s.permanentRate = rate }
}

// WithLatency sets the simulated delivery latency.
func WithLatency(d time.Duration) MockSenderOption {
	return func(s *MockSender) { s.latency = d }
}

func NewMockSender(name string, opts ...MockSenderOption) *MockSender {
	s := &MockSender{name: name}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MockSender) Name() string { return s.name }

func (s *MockSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !strings.Contains(to, "@") {
		return fmt.Errorf("%s: %q: %w", s.name, to, domainErrors.ErrInvalidRecipient)
	}
	if rand.Float64() < s.permanentRate {
		return fmt.Errorf("%s: simulated rejection: %w", s.name, domainErrors.ErrPermanentDelivery)
	}
	if rand.Float64() < s.failureRate {
		return fmt.Errorf("%s: simulated outage: %w", s.name, domainErrors.ErrTransientDelivery)
	}

	s.mu.Lock()
	s.sent = append(s.sent, Delivery{To: to, Subject: subject, HTMLBody: htmlBody, SentAt: time.Now().UTC()})
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of the accepted deliveries.
func (s *MockSender) Sent() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.sent))
	copy(out, s.sent)
	return out
}
