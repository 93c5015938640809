package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/infrastructure/config"
	"github.com/wneessen/go-mail"
)

// mailClient is the part of *mail.Client used for delivery.
type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender delivers HTML email through an SMTP relay.
type SMTPSender struct {
	client   mailClient
	from     string
	fromName string
}

func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPSender{client: client, from: cfg.FromAddress, fromName: cfg.FromName}, nil
}

func tlsPolicy(p string) mail.TLSPolicy {
	switch strings.ToLower(p) {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", s.from, domainErrors.ErrPermanentDelivery)
	}
	if err := msg.To(strings.TrimSpace(to)); err != nil {
		return fmt.Errorf("%q: %v: %w", to, err, domainErrors.ErrInvalidRecipient)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	start := time.Now()
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return classifySMTPError(err, time.Since(start))
	}
	return nil
}

// classifySMTPError maps a go-mail failure onto the delivery taxonomy.
// Only errors the server marks as non-temporary (5xx) are permanent.
func classifySMTPError(err error, elapsed time.Duration) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) && !sendErr.IsTemp() {
		return domainErrors.NewDomainError("smtp_rejected", fmt.Sprintf("smtp rejected message: %v", err), domainErrors.ErrPermanentDelivery)
	}
	return fmt.Errorf("smtp send failed after %s: %v: %w", elapsed.Round(time.Millisecond), err, domainErrors.ErrTransientDelivery)
}
