package testutil

import (
	"time"

	"github.com/cassiomorais/notifications/internal/domain/directory"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/domain/template"
	"github.com/google/uuid"
)

func NewMemberAddedEvent(recipientEmail string) notification.MemberAdded {
	return notification.MemberAdded{
		RecipientEmail:  recipientEmail,
		RecipientUserID: "u-" + uuid.NewString()[:8],
		ProjectID:       uuid.NewString(),
		ProjectName:     "Apollo",
		AddedByDisplay:  "Ana Lima",
		AddedByUsername: "ana",
	}
}

// NewPendingRecord returns a record due at createdAt.
func NewPendingRecord(recipientEmail string, createdAt time.Time) *notification.Record {
	rec, err := notification.NewRecord(NewMemberAddedEvent(recipientEmail), createdAt)
	if err != nil {
		panic(err)
	}
	return rec
}

func NewUser(id, username, email, fullName string) *directory.User {
	return &directory.User{ID: id, Username: username, Email: email, FullName: fullName}
}

// DefaultTemplates returns the built-in templates with a fixed UpdatedAt.
func DefaultTemplates() []*template.Template {
	ts := template.Defaults()
	for _, t := range ts {
		t.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return ts
}
