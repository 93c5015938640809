package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/template"
	"github.com/cassiomorais/notifications/internal/templating"
)

// TemplateRenderer loads stored templates and renders them against a payload.
type TemplateRenderer struct {
	repo template.Repository

	mu    sync.Mutex
	cache map[string]compiledTemplate
}

type compiledTemplate struct {
	updatedAt time.Time
	subject   *templating.Template
	body      *templating.Template
}

func NewTemplateRenderer(repo template.Repository) *TemplateRenderer {
	return &TemplateRenderer{
		repo:  repo,
		cache: make(map[string]compiledTemplate),
	}
}

// Render returns the subject and HTML body for key. An unknown key returns
// ErrTemplateNotFound; a stored template that does not parse returns
// ErrTemplateInvalid. Both are permanent.
func (r *TemplateRenderer) Render(ctx context.Context, key string, payload map[string]string) (string, string, error) {
	t, err := r.repo.Get(ctx, key)
	if err != nil {
		return "", "", err
	}
	if t == nil {
		return "", "", fmt.Errorf("%q: %w", key, domainErrors.ErrTemplateNotFound)
	}

	compiled, err := r.compile(t)
	if err != nil {
		return "", "", err
	}

	// subject is plain text; the body is HTML
	return compiled.subject.Execute(payload, false), compiled.body.Execute(payload, true), nil
}

func (r *TemplateRenderer) compile(t *template.Template) (compiledTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache[t.Key]; ok && c.updatedAt.Equal(t.UpdatedAt) {
		return c, nil
	}

	subject, err := templating.Parse(t.Subject)
	if err != nil {
		return compiledTemplate{}, fmt.Errorf("template %q subject: %w", t.Key, err)
	}
	body, err := templating.Parse(t.HTMLBody)
	if err != nil {
		return compiledTemplate{}, fmt.Errorf("template %q body: %w", t.Key, err)
	}

	c := compiledTemplate{updatedAt: t.UpdatedAt, subject: subject, body: body}
	r.cache[t.Key] = c
	return c, nil
}
