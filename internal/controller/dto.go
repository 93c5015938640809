package controller

import (
	"encoding/json"
	"time"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/google/uuid"
)

// --- Request DTOs ---
// Recipient emails are not format-checked here: a bad address is a delivery
// outcome recorded on the notification, not a reason to refuse the event.

// MemberAddedRequest holds the input for a project membership notification.
type MemberAddedRequest struct {
	RecipientEmail  string `json:"recipient_email" validate:"max=320"`
	RecipientUserID string `json:"recipient_user_id" validate:"max=128"`
	ProjectID       string `json:"project_id" validate:"max=128"`
	ProjectName     string `json:"project_name" validate:"max=256"`
	AddedByDisplay  string `json:"added_by_display" validate:"max=256"`
	AddedByUsername string `json:"added_by_username" validate:"max=128"`
}

func (r MemberAddedRequest) toEvent() notification.Event {
	return notification.MemberAdded{
		RecipientEmail:  r.RecipientEmail,
		RecipientUserID: r.RecipientUserID,
		ProjectID:       r.ProjectID,
		ProjectName:     r.ProjectName,
		AddedByDisplay:  r.AddedByDisplay,
		AddedByUsername: r.AddedByUsername,
	}
}

// TaskAssignedRequest holds the input for a task assignment notification.
type TaskAssignedRequest struct {
	RecipientEmail     string     `json:"recipient_email" validate:"max=320"`
	RecipientUserID    string     `json:"recipient_user_id" validate:"max=128"`
	TaskID             string     `json:"task_id" validate:"max=128"`
	TaskName           string     `json:"task_name" validate:"max=256"`
	ProjectID          string     `json:"project_id" validate:"max=128"`
	ProjectName        string     `json:"project_name" validate:"max=256"`
	DueAtUTC           *time.Time `json:"due_at_utc,omitempty"`
	AssignedByDisplay  string     `json:"assigned_by_display" validate:"max=256"`
	AssignedByUsername string     `json:"assigned_by_username" validate:"max=128"`
}

func (r TaskAssignedRequest) toEvent() notification.Event {
	return notification.TaskAssigned{
		RecipientEmail:     r.RecipientEmail,
		RecipientUserID:    r.RecipientUserID,
		TaskID:             r.TaskID,
		TaskName:           r.TaskName,
		ProjectID:          r.ProjectID,
		ProjectName:        r.ProjectName,
		DueAtUTC:           r.DueAtUTC,
		AssignedByDisplay:  r.AssignedByDisplay,
		AssignedByUsername: r.AssignedByUsername,
	}
}

// MentionedRequest holds the input for a mention notification raised
// outside chat, e.g. from a task comment.
type MentionedRequest struct {
	RecipientEmail    string `json:"recipient_email" validate:"max=320"`
	RecipientUserID   string `json:"recipient_user_id" validate:"max=128"`
	TaskID            string `json:"task_id" validate:"max=128"`
	TaskName          string `json:"task_name" validate:"max=256"`
	ProjectID         string `json:"project_id" validate:"max=128"`
	ProjectName       string `json:"project_name" validate:"max=256"`
	CommentID         string `json:"comment_id" validate:"max=128"`
	CommentExcerpt    string `json:"comment_excerpt" validate:"max=2000"`
	ContextURL        string `json:"context_url" validate:"max=2048"`
	MentionedByUserID string `json:"mentioned_by_user_id" validate:"max=128"`
	MentionedByName   string `json:"mentioned_by_name" validate:"max=256"`
}

func (r MentionedRequest) toEvent() notification.Event {
	return notification.Mentioned{
		RecipientEmail:    r.RecipientEmail,
		RecipientUserID:   r.RecipientUserID,
		TaskID:            r.TaskID,
		TaskName:          r.TaskName,
		ProjectID:         r.ProjectID,
		ProjectName:       r.ProjectName,
		CommentID:         r.CommentID,
		CommentExcerpt:    r.CommentExcerpt,
		ContextURL:        r.ContextURL,
		MentionedByUserID: r.MentionedByUserID,
		MentionedByName:   r.MentionedByName,
	}
}

// TaskDueSoonRequest holds the input for a due date reminder.
type TaskDueSoonRequest struct {
	RecipientEmail  string    `json:"recipient_email" validate:"max=320"`
	RecipientUserID string    `json:"recipient_user_id" validate:"max=128"`
	TaskID          string    `json:"task_id" validate:"max=128"`
	TaskName        string    `json:"task_name" validate:"max=256"`
	ProjectName     string    `json:"project_name" validate:"max=256"`
	DueAtUTC        time.Time `json:"due_at_utc" validate:"required"`
}

func (r TaskDueSoonRequest) toEvent() notification.Event {
	return notification.TaskDueSoon{
		RecipientEmail:  r.RecipientEmail,
		RecipientUserID: r.RecipientUserID,
		TaskID:          r.TaskID,
		TaskName:        r.TaskName,
		ProjectName:     r.ProjectName,
		DueAtUTC:        r.DueAtUTC,
	}
}

// Event type names accepted by the batch endpoint.
const (
	EventMemberAdded  = "member_added"
	EventTaskAssigned = "task_assigned"
	EventMentioned    = "mentioned"
	EventTaskDueSoon  = "task_due_soon"
)

// BatchEnqueueRequest enqueues several events atomically.
type BatchEnqueueRequest struct {
	Events []BatchEvent `json:"events" validate:"required,min=1,max=100,dive"`
}

// BatchEvent is one typed event of a batch. Data holds the body the
// matching single-event endpoint accepts.
type BatchEvent struct {
	Type string          `json:"type" validate:"required,oneof=member_added task_assigned mentioned task_due_soon"`
	Data json.RawMessage `json:"data" validate:"required"`
}

// SendMessageRequest holds the input for posting a chat message.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// --- Response DTOs ---

// EnqueuedResponse acknowledges an accepted event.
type EnqueuedResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// BatchEnqueuedResponse acknowledges an accepted batch, ids in request order.
type BatchEnqueuedResponse struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

// NotificationResponse is the diagnostic view of an outbox record.
type NotificationResponse struct {
	ID              string            `json:"id"`
	TemplateKey     string            `json:"template_key"`
	RecipientEmail  string            `json:"recipient_email"`
	RecipientUserID string            `json:"recipient_user_id,omitempty"`
	Payload         map[string]string `json:"payload"`
	Status          string            `json:"status"`
	Attempts        int               `json:"attempts"`
	LastError       *string           `json:"last_error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	NextAttemptAt   time.Time         `json:"next_attempt_at"`
	SentAt          *time.Time        `json:"sent_at,omitempty"`
}

// ListNotificationsResponse is a page of records.
type ListNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

// MessageResponse is a stored chat message.
type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderUserID   string    `json:"sender_user_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// --- Converters ---

func toNotificationResponse(rec *notification.Record) NotificationResponse {
	return NotificationResponse{
		ID:              rec.ID.String(),
		TemplateKey:     rec.TemplateKey,
		RecipientEmail:  rec.RecipientEmail,
		RecipientUserID: rec.RecipientUserID,
		Payload:         rec.Payload,
		Status:          string(rec.Status),
		Attempts:        rec.Attempts,
		LastError:       rec.LastError,
		CreatedAt:       rec.CreatedAt,
		NextAttemptAt:   rec.NextAttemptAt,
		SentAt:          rec.SentAt,
	}
}

func toMessageResponse(msg *chat.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID.String(),
		SenderUserID:   msg.SenderUserID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
