package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoringSender is the core send operation: persist, then broadcast.
// Once the message is stored the send has succeeded; a failed broadcast
// is handed to BroadcastFailed rather than returned, so a client retrying
// on error cannot store the message twice.
type StoringSender struct {
	messages    MessageRepository
	broadcaster Broadcaster
	now         func() time.Time

	BroadcastFailed func(ctx context.Context, msg *Message, err error)
}

func NewStoringSender(messages MessageRepository, broadcaster Broadcaster) *StoringSender {
	return &StoringSender{
		messages:    messages,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

func (s *StoringSender) Send(ctx context.Context, in NewMessage, actorUserID string) (*Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	msg := &Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderUserID:   actorUserID,
		Content:        in.Content,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(ctx, msg); err != nil && s.BroadcastFailed != nil {
			s.BroadcastFailed(ctx, msg, fmt.Errorf("failed to broadcast message: %w", err))
		}
	}

	return msg, nil
}
