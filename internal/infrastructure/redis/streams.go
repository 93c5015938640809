package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultDLQStream  = "notifications:dlq"
	DefaultChatStream = "chat:messages"
)

// StreamProducer appends events to Redis streams. It publishes
// dead-lettered notifications and broadcasts chat messages.
type StreamProducer struct {
	client     redis.Cmdable
	dlqStream  string
	chatStream string
	maxLen     int64
}

func NewStreamProducer(client redis.Cmdable, dlqStream, chatStream string, maxLen int64) *StreamProducer {
	if dlqStream == "" {
		dlqStream = DefaultDLQStream
	}
	if chatStream == "" {
		chatStream = DefaultChatStream
	}
	return &StreamProducer{
		client:     client,
		dlqStream:  dlqStream,
		chatStream: chatStream,
		maxLen:     maxLen,
	}
}

// PublishDeadLetter implements notification.DeadLetterPublisher.
func (p *StreamProducer) PublishDeadLetter(ctx context.Context, rec *notification.Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ payload: %w", err)
	}

	reason := ""
	if rec.LastError != nil {
		reason = *rec.LastError
	}

	_, err = p.client.XAdd(ctx, p.args(p.dlqStream, map[string]any{
		"notification_id": rec.ID.String(),
		"template_key":    rec.TemplateKey,
		"recipient_email": rec.RecipientEmail,
		"attempts":        rec.Attempts,
		"reason":          reason,
		"payload":         string(payload),
		"timestamp":       time.Now().Unix(),
	})).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	return nil
}

// Broadcast implements chat.Broadcaster.
func (p *StreamProducer) Broadcast(ctx context.Context, msg *chat.Message) error {
	_, err := p.client.XAdd(ctx, p.args(p.chatStream, map[string]any{
		"message_id":      msg.ID.String(),
		"conversation_id": msg.ConversationID.String(),
		"sender_user_id":  msg.SenderUserID,
		"content":         msg.Content,
		"timestamp":       msg.CreatedAt.Unix(),
	})).Result()
	if err != nil {
		return fmt.Errorf("failed to broadcast chat message: %w", err)
	}

	return nil
}

func (p *StreamProducer) args(stream string, values map[string]any) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return args
}
