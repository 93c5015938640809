package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/middleware"
	"github.com/cassiomorais/notifications/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessageRequest(conversationID, userID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+conversationID+"/messages", bytes.NewBufferString(body))
	req = withURLParam(req, "id", conversationID)
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	}
	return req
}

func TestChatController_SendMessage(t *testing.T) {
	var got chat.NewMessage
	var actor string
	sender := &testutil.MockChatSender{
		SendFunc: func(ctx context.Context, in chat.NewMessage, actorUserID string) (*chat.Message, error) {
			got, actor = in, actorUserID
			return &chat.Message{
				ID:             uuid.New(),
				ConversationID: in.ConversationID,
				SenderUserID:   actorUserID,
				Content:        in.Content,
				CreatedAt:      time.Now().UTC(),
			}, nil
		},
	}
	handler := NewChatController(sender)
	convID := uuid.New()

	rec := httptest.NewRecorder()
	handler.SendMessage(rec, newMessageRequest(convID.String(), "u-bob", `{"content":"hi @alice"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, convID, got.ConversationID)
	assert.Equal(t, "hi @alice", got.Content)
	assert.Equal(t, "u-bob", actor)

	var resp MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "u-bob", resp.SenderUserID)
	assert.Equal(t, convID.String(), resp.ConversationID)
}

func TestChatController_SendMessage_Errors(t *testing.T) {
	convID := uuid.NewString()

	tests := []struct {
		name    string
		convID  string
		userID  string
		body    string
		sendErr error
		status  int
		code    string
	}{
		{"invalid conversation id", "nope", "u-bob", `{"content":"hi"}`, nil, http.StatusBadRequest, "invalid_id"},
		{"unauthenticated", convID, "", `{"content":"hi"}`, nil, http.StatusUnauthorized, "unauthorized"},
		{"missing content", convID, "u-bob", `{}`, nil, http.StatusBadRequest, "validation_error"},
		{"blank content", convID, "u-bob", `{"content":"   "}`, domainErrors.ErrEmptyMessage, http.StatusBadRequest, "empty_message"},
		{"unknown conversation", convID, "u-bob", `{"content":"hi"}`, fmt.Errorf("store message: %w", domainErrors.ErrConversationNotFound), http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &testutil.MockChatSender{}
			if tt.sendErr != nil {
				sender.SendFunc = func(ctx context.Context, in chat.NewMessage, actorUserID string) (*chat.Message, error) {
					return nil, tt.sendErr
				}
			}
			handler := NewChatController(sender)

			rec := httptest.NewRecorder()
			handler.SendMessage(rec, newMessageRequest(tt.convID, tt.userID, tt.body))

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}
