package channels

import (
	"fmt"

	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/infrastructure/config"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
)

// NewFromConfig builds the configured channel wrapped in a circuit breaker.
func NewFromConfig(senderCfg config.SenderConfig, smtpCfg config.SMTPConfig, metrics *observability.Metrics) (notification.Sender, error) {
	var inner notification.Sender

	switch senderCfg.Driver {
	case "smtp":
		s, err := NewSMTPSender(smtpCfg)
		if err != nil {
			return nil, err
		}
		inner = s
	case "mock", "":
		inner = NewMockSender("mock",
			WithLatency(senderCfg.MockLatency),
			WithFailureRate(senderCfg.MockFailureRate),
		)
	default:
		return nil, fmt.Errorf("unknown sender driver %q", senderCfg.Driver)
	}

	return NewBreakerSender(inner, BreakerSettings{
		Threshold: senderCfg.CircuitBreakerThreshold,
		Timeout:   senderCfg.CircuitBreakerTimeout,
	}, metrics), nil
}
