package controller

import (
	"net/http"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ChatController struct {
	sender chat.Sender
}

// NewChatController takes the decorated sender so observers such as
// mention detection run after every stored message.
func NewChatController(sender chat.Sender) *ChatController {
	return &ChatController{sender: sender}
}

func (h *ChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id", Code: "invalid_id"})
		return
	}

	actorUserID, ok := middleware.GetUserID(r.Context())
	if !ok || actorUserID == "" {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req SendMessageRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.sender.Send(r.Context(), chat.NewMessage{
		ConversationID: conversationID,
		Content:        req.Content,
	}, actorUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}
