package chat

import (
	"context"
	"strings"
	"time"

	"github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/google/uuid"
)

// NewMessage is the input of a chat send.
type NewMessage struct {
	ConversationID uuid.UUID
	Content        string
}

func (m NewMessage) Validate() error {
	if m.ConversationID == uuid.Nil {
		return errors.NewValidationError("conversation_id", "cannot be empty")
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.ErrEmptyMessage
	}
	return nil
}

// Message is a stored chat message.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderUserID   string
	Content        string
	CreatedAt      time.Time
}

// Sender stores and broadcasts a chat message on behalf of actorUserID.
type Sender interface {
	Send(ctx context.Context, in NewMessage, actorUserID string) (*Message, error)
}

// Observer reacts to a message that has already been sent.
type Observer interface {
	OnMessageSent(ctx context.Context, msg *Message) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, msg *Message) error

func (f ObserverFunc) OnMessageSent(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// ConversationReader returns conversation names. Unknown ids yield "".
type ConversationReader interface {
	ConversationName(ctx context.Context, id uuid.UUID) (string, error)
}

// MessageRepository persists chat messages
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
}

// Broadcaster pushes stored messages to connected clients.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *Message) error
}
