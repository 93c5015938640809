package notification

import (
	"time"

	"github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/google/uuid"
)

// Status is the delivery state of an outbox record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusDeadLetter
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusDeadLetter:
		return true
	}
	return false
}

// Record is one enqueued notification. The processor is the only writer
// of Status, Attempts and NextAttemptAt once the record is stored.
type Record struct {
	ID              uuid.UUID
	TemplateKey     string
	RecipientEmail  string
	RecipientUserID string
	Payload         Payload
	Status          Status
	Attempts        int
	LastError       *string
	CreatedAt       time.Time
	NextAttemptAt   time.Time
	SentAt          *time.Time
	ClaimedBy       *string
	ClaimedUntil    *time.Time
}

// NewRecord builds a pending record for the event, due immediately.
func NewRecord(event Event, now time.Time) (*Record, error) {
	if event == nil {
		return nil, errors.ErrUnknownEvent
	}
	email, userID := event.Recipient()
	now = now.UTC()
	return &Record{
		ID:              uuid.New(),
		TemplateKey:     event.TemplateKey(),
		RecipientEmail:  email,
		RecipientUserID: userID,
		Payload:         event.Payload(),
		Status:          StatusPending,
		Attempts:        0,
		CreatedAt:       now,
		NextAttemptAt:   now,
	}, nil
}

// MarkSent records a successful delivery.
func (r *Record) MarkSent(at time.Time) error {
	if r.Status != StatusPending {
		return errors.ErrInvalidStateTransition
	}
	at = at.UTC()
	r.Attempts++
	r.Status = StatusSent
	r.SentAt = &at
	r.LastError = nil
	return nil
}

// ScheduleRetry records a transient failure. Once attempts reach
// maxAttempts the record is dead-lettered and next is ignored.
func (r *Record) ScheduleRetry(cause error, maxAttempts int, next time.Time) error {
	if r.Status != StatusPending {
		return errors.ErrInvalidStateTransition
	}
	r.Attempts++
	r.setLastError(cause)
	if r.Attempts >= maxAttempts {
		r.Status = StatusDeadLetter
		return nil
	}
	r.NextAttemptAt = next.UTC()
	return nil
}

// RejectDelivery records a permanent failure returned by the channel.
func (r *Record) RejectDelivery(cause error) error {
	if r.Status != StatusPending {
		return errors.ErrInvalidStateTransition
	}
	r.Attempts++
	r.Status = StatusDeadLetter
	r.setLastError(cause)
	return nil
}

// MarkDeadLetter dead-letters the record without counting a delivery
// attempt, e.g. when the template is missing or the recipient is empty.
func (r *Record) MarkDeadLetter(cause error) error {
	if r.Status != StatusPending {
		return errors.ErrInvalidStateTransition
	}
	r.Status = StatusDeadLetter
	r.setLastError(cause)
	return nil
}

func (r *Record) setLastError(cause error) {
	if cause == nil {
		r.LastError = nil
		return
	}
	msg := cause.Error()
	r.LastError = &msg
}
