package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	"github.com/cassiomorais/notifications/internal/service"
	"github.com/cassiomorais/notifications/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNotificationController() (*NotificationController, *testutil.MemOutboxRepository) {
	repo := testutil.NewMemOutboxRepository()
	svc := service.NewNotificationService(
		repo,
		testutil.NewMockTransactionManager(),
		observability.NewMetrics("test", prometheus.NewRegistry()),
		zerolog.Nop(),
	)
	return NewNotificationController(svc), repo
}

func postJSON(handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestNotificationController_MemberAdded(t *testing.T) {
	handler, repo := setupNotificationController()

	rec := postJSON(handler.MemberAdded, "/api/v1/notifications/member-added", MemberAddedRequest{
		RecipientEmail:  "lan@example.com",
		RecipientUserID: "u-lan",
		ProjectID:       "p-1",
		ProjectName:     "Apollo",
		AddedByDisplay:  "Ana Lima",
		AddedByUsername: "ana",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp EnqueuedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "pending", resp.Status)

	stored := repo.All()
	require.Len(t, stored, 1)
	assert.Equal(t, resp.ID, stored[0].ID.String())
	assert.Equal(t, notification.TemplateProjectMemberAdded, stored[0].TemplateKey)
	assert.Equal(t, "lan@example.com", stored[0].RecipientEmail)
	assert.Equal(t, "Apollo", stored[0].Payload[notification.FieldProjectName])
	assert.Equal(t, 0, stored[0].Attempts)
}

func TestNotificationController_AcceptsUndeliverableRecipient(t *testing.T) {
	handler, repo := setupNotificationController()

	// the processor dead-letters it later; enqueue does not judge deliverability
	rec := postJSON(handler.TaskAssigned, "/api/v1/notifications/task-assigned", TaskAssignedRequest{
		TaskName: "Ship release",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, repo.All(), 1)
	assert.Equal(t, "", repo.All()[0].RecipientEmail)
}

func TestNotificationController_TaskAssigned_DueDate(t *testing.T) {
	handler, repo := setupNotificationController()

	rec := postJSON(handler.TaskAssigned, "/api/v1/notifications/task-assigned",
		`{"recipient_email":"carol@example.com","task_name":"Ship","due_at_utc":"2026-04-02T17:00:00+01:00"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	stored := repo.All()
	require.Len(t, stored, 1)
	assert.Equal(t, "2026-04-02T16:00:00Z", stored[0].Payload[notification.FieldDueAtUTC])
}

func TestNotificationController_Mentioned(t *testing.T) {
	handler, repo := setupNotificationController()

	rec := postJSON(handler.Mentioned, "/api/v1/notifications/mentioned", MentionedRequest{
		RecipientEmail:  "alice@example.com",
		CommentID:       "c-1",
		CommentExcerpt:  "ping @alice",
		ContextURL:      "/tasks/t-1",
		MentionedByName: "Bob",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, repo.All(), 1)
	assert.Equal(t, notification.TemplateUserMentioned, repo.All()[0].TemplateKey)
}

func TestNotificationController_TaskDueSoon_RequiresDueDate(t *testing.T) {
	handler, repo := setupNotificationController()

	rec := postJSON(handler.TaskDueSoon, "/api/v1/notifications/task-due-soon", TaskDueSoonRequest{
		RecipientEmail: "carol@example.com",
		TaskName:       "Ship",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.All())
}

func TestNotificationController_InvalidJSON(t *testing.T) {
	handler, _ := setupNotificationController()

	rec := postJSON(handler.MemberAdded, "/api/v1/notifications/member-added", `{"recipient_email":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	assert.Equal(t, "validation_error", resp.Code)
}

func TestNotificationController_StoreFailure(t *testing.T) {
	handler, repo := setupNotificationController()
	repo.InsertFunc = func(ctx context.Context, rec *notification.Record) error {
		return errors.New("connection refused")
	}

	rec := postJSON(handler.MemberAdded, "/api/v1/notifications/member-added", MemberAddedRequest{
		RecipientEmail: "lan@example.com",
	})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	assert.Equal(t, "enqueue_failed", resp.Code)
}

func TestNotificationController_Batch(t *testing.T) {
	handler, repo := setupNotificationController()

	body := `{"events":[
		{"type":"member_added","data":{"recipient_email":"a@example.com","project_name":"Apollo"}},
		{"type":"task_due_soon","data":{"recipient_email":"b@example.com","task_name":"Ship","due_at_utc":"2026-04-02T16:00:00Z"}}
	]}`
	rec := postJSON(handler.Batch, "/api/v1/notifications/batch", body)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp BatchEnqueuedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.IDs, 2)

	stored := repo.All()
	require.Len(t, stored, 2)
	keys := []string{stored[0].TemplateKey, stored[1].TemplateKey}
	assert.ElementsMatch(t, []string{notification.TemplateProjectMemberAdded, notification.TemplateTaskDueSoon}, keys)
}

func TestNotificationController_Batch_RejectsWholeBatch(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", `{"events":[]}`},
		{"unknown type", `{"events":[{"type":"sms","data":{}}]}`},
		{"bad item", `{"events":[
			{"type":"member_added","data":{"recipient_email":"a@example.com"}},
			{"type":"task_due_soon","data":{"task_name":"no due date"}}
		]}`},
		{"malformed data", `{"events":[{"type":"mentioned","data":"nope"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, repo := setupNotificationController()

			rec := postJSON(handler.Batch, "/api/v1/notifications/batch", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, repo.All())
		})
	}
}

func TestNotificationController_Batch_NamesOffendingField(t *testing.T) {
	handler, _ := setupNotificationController()
	body := `{"events":[
		{"type":"member_added","data":{"recipient_email":"a@example.com"}},
		{"type":"task_due_soon","data":{"task_name":"no due date"}}
	]}`

	rec := postJSON(handler.Batch, "/api/v1/notifications/batch", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation_error", resp.Code)
	assert.Contains(t, resp.Error, "events[1].due_at_utc")
	assert.Contains(t, resp.Error, "is required")
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestNotificationController_Get(t *testing.T) {
	handler, repo := setupNotificationController()
	stored := testutil.NewPendingRecord("lan@example.com", time.Now())
	require.NoError(t, repo.Insert(context.Background(), stored))

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/"+stored.ID.String(), nil), "id", stored.ID.String())
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp NotificationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, stored.ID.String(), resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "Apollo", resp.Payload[notification.FieldProjectName])
}

func TestNotificationController_Get_Errors(t *testing.T) {
	handler, _ := setupNotificationController()

	tests := []struct {
		name   string
		id     string
		status int
		code   string
	}{
		{"invalid id", "not-a-uuid", http.StatusBadRequest, "invalid_id"},
		{"not found", uuid.NewString(), http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/"+tt.id, nil), "id", tt.id)
			rec := httptest.NewRecorder()
			handler.Get(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestNotificationController_List(t *testing.T) {
	handler, repo := setupNotificationController()
	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(context.Background(), testutil.NewPendingRecord("lan@example.com", now.Add(time.Duration(i)*time.Second))))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?status=pending&limit=2", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListNotificationsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Notifications, 2)
	assert.Equal(t, 2, resp.Limit)
}

func TestNotificationController_List_BadQuery(t *testing.T) {
	handler, _ := setupNotificationController()

	for _, q := range []string{"status=bogus", "limit=abc", "offset=-1"} {
		t.Run(q, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?"+q, nil)
			rec := httptest.NewRecorder()
			handler.List(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), "validation_error"))
		})
	}
}
