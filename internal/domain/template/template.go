package template

import (
	"context"
	"strings"
	"time"

	"github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/notification"
)

// Template is a named subject/body pair with {{Field}} placeholders.
type Template struct {
	Key       string
	Subject   string
	HTMLBody  string
	UpdatedAt time.Time
}

func New(key, subject, htmlBody string) (*Template, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.NewValidationError("key", "cannot be empty")
	}
	if strings.TrimSpace(subject) == "" {
		return nil, errors.NewValidationError("subject", "cannot be empty")
	}
	return &Template{
		Key:       key,
		Subject:   subject,
		HTMLBody:  htmlBody,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Repository defines the interface for template persistence
type Repository interface {
	// Get returns ErrTemplateNotFound when no template has the key
	Get(ctx context.Context, key string) (*Template, error)

	// Upsert creates or replaces a template
	Upsert(ctx context.Context, t *Template) error

	// SeedMissing inserts the templates whose key does not exist yet and
	// returns how many were inserted. Existing templates are left untouched.
	SeedMissing(ctx context.Context, templates []*Template) (int, error)
}

// Defaults returns the built-in templates for every notification event.
func Defaults() []*Template {
	return []*Template{
		{
			Key:      notification.TemplateProjectMemberAdded,
			Subject:  "You were added to {{ProjectName}}",
			HTMLBody: `<p><b>{{AddedByDisplay}}</b> added you to the project <b>{{ProjectName}}</b>.</p>`,
		},
		{
			Key:      notification.TemplateTaskAssigned,
			Subject:  "New task assigned: {{TaskName}}",
			HTMLBody: `<p><b>{{AssignedByDisplay}}</b> assigned you <b>{{TaskName}}</b>{{if ProjectName}} in <b>{{ProjectName}}</b>{{end}}.` +
				`{{if DueAtUtc}} Due: <b>{{DueAtUtc|date}}</b>{{end}}</p>`,
		},
		{
			Key:     notification.TemplateUserMentioned,
			Subject: "{{MentionedByName}} mentioned you{{if ProjectName}} in {{ProjectName}}{{end}}",
			HTMLBody: `<p><b>{{MentionedByName}}</b> mentioned you:</p><blockquote>{{CommentExcerpt}}</blockquote>` +
				`<p>View: <a href="{{ContextUrl}}">link</a></p>`,
		},
		{
			Key:      notification.TemplateTaskDueSoon,
			Subject:  "Task due soon: {{TaskName}}",
			HTMLBody: `<p><b>{{TaskName}}</b>{{if ProjectName}} ({{ProjectName}}){{end}} is due on <b>{{DueAtUtc|datetime}}</b>.</p>`,
		},
	}
}
