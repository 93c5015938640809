package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	"github.com/cassiomorais/notifications/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Renderer produces the subject and HTML body of a notification.
type Renderer interface {
	Render(ctx context.Context, key string, payload map[string]string) (subject, body string, err error)
}

// ProcessorConfig tunes the outbox processor.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Concurrency  int
	ClaimTTL     time.Duration
	SendTimeout  time.Duration
	Backoff      retry.Schedule
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	// a lease shorter than a send would let another instance re-claim mid-flight
	if c.ClaimTTL < c.SendTimeout {
		c.ClaimTTL = 2 * c.SendTimeout
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff = retry.DefaultSchedule()
	}
	return c
}

// NewOwner returns a claim owner id unique to this process.
func NewOwner(instanceID string) string {
	return instanceID + "-" + uuid.NewString()[:8]
}

// OutboxProcessor claims due records and delivers them.
type OutboxProcessor struct {
	repo     notification.Repository
	renderer Renderer
	sender   notification.Sender
	dlq      notification.DeadLetterPublisher
	cfg      ProcessorConfig
	owner    string
	metrics  *observability.Metrics
	logger   zerolog.Logger
	tracer   trace.Tracer
	writes   retry.Config
	now      func() time.Time
}

// NewOutboxProcessor creates a processor. dlq may be nil.
func NewOutboxProcessor(
	repo notification.Repository,
	renderer Renderer,
	sender notification.Sender,
	dlq notification.DeadLetterPublisher,
	cfg ProcessorConfig,
	owner string,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:     repo,
		renderer: renderer,
		sender:   sender,
		dlq:      dlq,
		cfg:      cfg.withDefaults(),
		owner:    owner,
		metrics:  metrics,
		logger:   logger.With().Str("component", "outbox_processor").Str("owner", owner).Logger(),
		tracer:   otel.Tracer("github.com/cassiomorais/notifications/outbox"),
		writes:   retry.DefaultConfig(),
		now:      time.Now,
	}
}

func (p *OutboxProcessor) Owner() string { return p.owner }

// Run polls until ctx is cancelled. The in-flight batch is finished (or
// released) before Run returns.
func (p *OutboxProcessor) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("poll_interval", p.cfg.PollInterval).
		Int("batch_size", p.cfg.BatchSize).
		Int("concurrency", p.cfg.Concurrency).
		Msg("Outbox processor started")

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		n, err := p.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			p.logger.Error().Err(err).Msg("Outbox batch failed")
		}
		// a full batch means there is likely more due work
		if err == nil && n == p.cfg.BatchSize && ctx.Err() == nil {
			continue
		}

		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Outbox processor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch and delivers it with bounded parallelism.
// It returns the number of records claimed.
func (p *OutboxProcessor) RunOnce(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil
	}

	records, err := p.repo.Claim(ctx, notification.ClaimRequest{
		Owner: p.owner,
		Now:   p.now().UTC(),
		Limit: p.cfg.BatchSize,
		TTL:   p.cfg.ClaimTTL,
	})
	if err != nil {
		return 0, fmt.Errorf("claim batch: %w", err)
	}
	p.metrics.ClaimedBatchSize.Observe(float64(len(records)))
	if len(records) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for _, rec := range records {
		g.Go(func() error {
			p.deliver(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	return len(records), nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, rec *notification.Record) {
	ctx, span := p.tracer.Start(ctx, "outbox.deliver", trace.WithAttributes(
		attribute.String("notification.id", rec.ID.String()),
		attribute.String("notification.template", rec.TemplateKey),
		attribute.Int("notification.attempts", rec.Attempts),
	))
	defer span.End()

	p.metrics.InFlightDeliveries.Inc()
	defer p.metrics.InFlightDeliveries.Dec()
	start := time.Now()

	log := p.logger.With().
		Str("notification_id", rec.ID.String()).
		Str("template", rec.TemplateKey).
		Int("attempts", rec.Attempts).
		Logger()

	outcome := p.attempt(ctx, rec, log)

	span.SetAttributes(attribute.String("notification.outcome", outcome))
	if outcome != observability.OutcomeSent {
		span.SetStatus(codes.Error, outcome)
	}
	p.metrics.Deliveries.WithLabelValues(rec.TemplateKey, outcome).Inc()
	p.metrics.DeliveryDuration.WithLabelValues(rec.TemplateKey, outcome).Observe(time.Since(start).Seconds())
}

// attempt runs one delivery attempt and persists its outcome.
func (p *OutboxProcessor) attempt(ctx context.Context, rec *notification.Record, log zerolog.Logger) string {
	if ctx.Err() != nil {
		return p.release(ctx, rec, log)
	}

	if strings.TrimSpace(rec.RecipientEmail) == "" {
		_ = rec.MarkDeadLetter(domainErrors.ErrInvalidRecipient)
		return p.deadLetter(ctx, rec, log)
	}

	subject, body, err := p.renderer.Render(ctx, rec.TemplateKey, rec.Payload)
	if err != nil {
		if domainErrors.IsPermanent(err) {
			log.Warn().Err(err).Msg("Template unusable, dead-lettering without delivery")
			_ = rec.MarkDeadLetter(err)
			return p.deadLetter(ctx, rec, log)
		}
		if ctx.Err() != nil {
			return p.release(ctx, rec, log)
		}
		return p.failTransient(ctx, rec, fmt.Errorf("render: %w", err), log)
	}

	// A send that could outlive the lease may race a second claimant, so a
	// record queued too long inside the batch goes back unsent.
	if !p.leaseCovers(rec) {
		return p.releaseWith(ctx, rec, log, "Lease too short for a send, claim released")
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	err = p.sender.Send(sendCtx, rec.RecipientEmail, subject, body)
	cancel()

	switch {
	case err == nil:
		_ = rec.MarkSent(p.now())
		if !p.write(ctx, log, func(wctx context.Context) error { return p.repo.MarkSent(wctx, rec, p.owner) }) {
			return observability.OutcomeClaimLost
		}
		log.Info().Str("channel", p.sender.Name()).Msg("Notification sent")
		return observability.OutcomeSent

	case ctx.Err() != nil:
		// shutdown mid-send: not an attempt, leave it pending for a later claim
		return p.release(ctx, rec, log)

	case domainErrors.IsPermanent(err):
		log.Warn().Err(err).Str("error_code", domainErrors.CodeOf(err)).Msg("Permanent delivery failure")
		_ = rec.RejectDelivery(err)
		return p.deadLetter(ctx, rec, log)

	default:
		return p.failTransient(ctx, rec, err, log)
	}
}

func (p *OutboxProcessor) failTransient(ctx context.Context, rec *notification.Record, cause error, log zerolog.Logger) string {
	next := p.cfg.Backoff.Next(p.now(), rec.Attempts+1)
	_ = rec.ScheduleRetry(cause, p.cfg.MaxAttempts, next)

	if rec.Status == notification.StatusDeadLetter {
		log.Warn().Err(cause).Int("max_attempts", p.cfg.MaxAttempts).Msg("Attempts exhausted")
		return p.deadLetter(ctx, rec, log)
	}

	if !p.write(ctx, log, func(wctx context.Context) error { return p.repo.MarkRetry(wctx, rec, p.owner) }) {
		return observability.OutcomeClaimLost
	}
	log.Warn().Err(cause).Time("next_attempt_at", rec.NextAttemptAt).Msg("Delivery failed, retry scheduled")
	return observability.OutcomeRetry
}

func (p *OutboxProcessor) deadLetter(ctx context.Context, rec *notification.Record, log zerolog.Logger) string {
	if !p.write(ctx, log, func(wctx context.Context) error { return p.repo.MarkDeadLetter(wctx, rec, p.owner) }) {
		return observability.OutcomeClaimLost
	}
	log.Error().Str("last_error", deref(rec.LastError)).Msg("Notification dead-lettered")

	if p.dlq != nil {
		status := "ok"
		if err := p.dlq.PublishDeadLetter(context.WithoutCancel(ctx), rec); err != nil {
			status = "error"
			log.Warn().Err(err).Msg("Failed to publish dead letter")
		}
		p.metrics.DeadLetterPublishes.WithLabelValues(status).Inc()
	}
	return observability.OutcomeDeadLetter
}

// leaseCovers reports whether the claim outlasts a full send.
func (p *OutboxProcessor) leaseCovers(rec *notification.Record) bool {
	if rec.ClaimedUntil == nil {
		return true
	}
	return rec.ClaimedUntil.Sub(p.now()) >= p.cfg.SendTimeout
}

func (p *OutboxProcessor) release(ctx context.Context, rec *notification.Record, log zerolog.Logger) string {
	return p.releaseWith(ctx, rec, log, "Claim released on shutdown")
}

func (p *OutboxProcessor) releaseWith(ctx context.Context, rec *notification.Record, log zerolog.Logger, msg string) string {
	if !p.write(ctx, log, func(wctx context.Context) error { return p.repo.Release(wctx, rec.ID, p.owner) }) {
		return observability.OutcomeClaimLost
	}
	log.Info().Msg(msg)
	return observability.OutcomeReleased
}

// write persists an outcome even when ctx is already cancelled. It reports
// false when the lease was lost to another owner.
func (p *OutboxProcessor) write(ctx context.Context, log zerolog.Logger, fn func(context.Context) error) bool {
	wctx := context.WithoutCancel(ctx)
	err := retry.Do(wctx, p.writes, func() error {
		err := fn(wctx)
		if errors.Is(err, domainErrors.ErrClaimLost) || errors.Is(err, domainErrors.ErrInvalidStateTransition) {
			return retry.Stop(err)
		}
		return err
	})
	if err == nil {
		return true
	}
	if errors.Is(err, domainErrors.ErrClaimLost) {
		log.Warn().Err(err).Msg("Claim lost before outcome was written")
	} else {
		// the lease expires and another claim retries the record
		log.Error().Err(err).Msg("Failed to persist delivery outcome")
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
