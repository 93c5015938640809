package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxColumns = `id, template_key, recipient_email, recipient_user_id, payload, status, attempts,
	last_error, created_at, next_attempt_at, sent_at, claimed_by, claimed_until`

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Insert joins the transaction carried by ctx, if any.
func (r *OutboxRepository) Insert(ctx context.Context, rec *notification.Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO notification_outbox
		   (id, template_key, recipient_email, recipient_user_id, payload, status, attempts, created_at, next_attempt_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.TemplateKey, rec.RecipientEmail, nullIfEmpty(rec.RecipientUserID), payload,
		string(rec.Status), rec.Attempts, rec.CreatedAt, rec.NextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Claim leases due records in a single statement. SKIP LOCKED keeps
// concurrent claimers from blocking on, or double-claiming, the same rows.
func (r *OutboxRepository) Claim(ctx context.Context, req notification.ClaimRequest) ([]*notification.Record, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`WITH due AS (
		     SELECT id FROM notification_outbox
		     WHERE status = 'pending'
		       AND next_attempt_at <= $1
		       AND (claimed_until IS NULL OR claimed_until < $1)
		     ORDER BY created_at ASC
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 UPDATE notification_outbox o
		 SET claimed_by = $3, claimed_until = $4
		 FROM due
		 WHERE o.id = due.id
		 RETURNING o.id, o.template_key, o.recipient_email, o.recipient_user_id, o.payload, o.status, o.attempts,
		           o.last_error, o.created_at, o.next_attempt_at, o.sent_at, o.claimed_by, o.claimed_until`,
		req.Now, req.Limit, req.Owner, req.Now.Add(req.TTL),
	)
	if err != nil {
		return nil, fmt.Errorf("claim notifications: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve the CTE order
	slices.SortFunc(records, func(a, b *notification.Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return records, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, rec *notification.Record, owner string) error {
	if rec.Status != notification.StatusSent {
		return domainErrors.ErrInvalidStateTransition
	}
	return r.writeOutcome(ctx, rec, owner)
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, rec *notification.Record, owner string) error {
	if rec.Status != notification.StatusPending {
		return domainErrors.ErrInvalidStateTransition
	}
	return r.writeOutcome(ctx, rec, owner)
}

func (r *OutboxRepository) MarkDeadLetter(ctx context.Context, rec *notification.Record, owner string) error {
	if rec.Status != notification.StatusDeadLetter {
		return domainErrors.ErrInvalidStateTransition
	}
	return r.writeOutcome(ctx, rec, owner)
}

// writeOutcome is a compare-and-swap on (claimed_by, status): it only
// succeeds while owner still holds the lease on a pending row.
func (r *OutboxRepository) writeOutcome(ctx context.Context, rec *notification.Record, owner string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE notification_outbox
		 SET status = $3, attempts = $4, last_error = $5, next_attempt_at = $6, sent_at = $7,
		     claimed_by = NULL, claimed_until = NULL
		 WHERE id = $1 AND claimed_by = $2 AND status = 'pending'`,
		rec.ID, owner, string(rec.Status), rec.Attempts, rec.LastError, rec.NextAttemptAt, rec.SentAt,
	)
	if err != nil {
		return fmt.Errorf("update notification %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", rec.ID, domainErrors.ErrClaimLost)
	}
	return nil
}

func (r *OutboxRepository) Release(ctx context.Context, id uuid.UUID, owner string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE notification_outbox SET claimed_by = NULL, claimed_until = NULL
		 WHERE id = $1 AND claimed_by = $2 AND status = 'pending'`,
		id, owner,
	)
	if err != nil {
		return fmt.Errorf("release notification %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, domainErrors.ErrClaimLost)
	}
	return nil
}

func (r *OutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*notification.Record, error) {
	row := r.db(ctx).QueryRow(ctx,
		`SELECT `+outboxColumns+` FROM notification_outbox WHERE id = $1`, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return rec, nil
}

func (r *OutboxRepository) List(ctx context.Context, filter notification.ListFilter) ([]*notification.Record, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+outboxColumns+` FROM notification_outbox
		 WHERE ($1::text IS NULL OR status = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		status, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*notification.Record, error) {
	rec := &notification.Record{}
	var (
		userID  *string
		payload []byte
		status  string
	)
	if err := row.Scan(&rec.ID, &rec.TemplateKey, &rec.RecipientEmail, &userID, &payload, &status, &rec.Attempts,
		&rec.LastError, &rec.CreatedAt, &rec.NextAttemptAt, &rec.SentAt, &rec.ClaimedBy, &rec.ClaimedUntil); err != nil {
		return nil, err
	}
	if userID != nil {
		rec.RecipientUserID = *userID
	}
	rec.Status = notification.Status(status)
	rec.Payload = notification.Payload{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal notification payload: %w", err)
		}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.NextAttemptAt = rec.NextAttemptAt.UTC()
	return rec, nil
}

func scanRecords(rows pgx.Rows) ([]*notification.Record, error) {
	var records []*notification.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
