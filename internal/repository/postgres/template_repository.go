package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/template"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TemplateRepository struct {
	pool *pgxpool.Pool
}

func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

func (r *TemplateRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *TemplateRepository) Get(ctx context.Context, key string) (*template.Template, error) {
	t := &template.Template{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT key, subject, html_body, updated_at FROM notification_templates WHERE key = $1`, key,
	).Scan(&t.Key, &t.Subject, &t.HTMLBody, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%q: %w", key, domainErrors.ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepository) Upsert(ctx context.Context, t *template.Template) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO notification_templates (key, subject, html_body, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE
		   SET subject = EXCLUDED.subject, html_body = EXCLUDED.html_body, updated_at = EXCLUDED.updated_at`,
		t.Key, t.Subject, t.HTMLBody, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert template %q: %w", t.Key, err)
	}
	return nil
}

// SeedMissing batches one insert per template; operator edits are never overwritten.
func (r *TemplateRepository) SeedMissing(ctx context.Context, templates []*template.Template) (int, error) {
	if len(templates) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, t := range templates {
		batch.Queue(
			`INSERT INTO notification_templates (key, subject, html_body, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (key) DO NOTHING`,
			t.Key, t.Subject, t.HTMLBody, now,
		)
	}

	results := r.db(ctx).SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for _, t := range templates {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("seed template %q: %w", t.Key, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
