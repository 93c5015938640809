package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const foreignKeyViolation = "23503"

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *ChatRepository) Create(ctx context.Context, msg *chat.Message) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO chat_messages (id, conversation_id, sender_user_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ConversationID, msg.SenderUserID, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("conversation %s: %w", msg.ConversationID, domainErrors.ErrConversationNotFound)
		}
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (r *ChatRepository) ConversationName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db(ctx).QueryRow(ctx, `SELECT name FROM conversations WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get conversation name: %w", err)
	}
	return name, nil
}
