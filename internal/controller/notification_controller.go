package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultListLimit = 50

type NotificationController struct {
	notificationService *service.NotificationService
}

func NewNotificationController(notificationService *service.NotificationService) *NotificationController {
	return &NotificationController{notificationService: notificationService}
}

// eventRequest is a request DTO that maps onto one notification event.
type eventRequest interface {
	toEvent() notification.Event
}

func (h *NotificationController) MemberAdded(w http.ResponseWriter, r *http.Request) {
	var req MemberAddedRequest
	h.enqueue(w, r, &req)
}

func (h *NotificationController) TaskAssigned(w http.ResponseWriter, r *http.Request) {
	var req TaskAssignedRequest
	h.enqueue(w, r, &req)
}

func (h *NotificationController) Mentioned(w http.ResponseWriter, r *http.Request) {
	var req MentionedRequest
	h.enqueue(w, r, &req)
}

func (h *NotificationController) TaskDueSoon(w http.ResponseWriter, r *http.Request) {
	var req TaskDueSoonRequest
	h.enqueue(w, r, &req)
}

// enqueue decodes into req and stores the event. 202 means the record is
// durable; delivery happens later in the worker.
func (h *NotificationController) enqueue(w http.ResponseWriter, r *http.Request, req eventRequest) {
	if err := decodeAndValidate(r, req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.notificationService.Enqueue(r.Context(), req.toEvent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueuedResponse{
		ID:     id.String(),
		Status: string(notification.StatusPending),
	})
}

// Batch stores every event of the request in one transaction, or none.
func (h *NotificationController) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchEnqueueRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	events := make([]notification.Event, 0, len(req.Events))
	for i, be := range req.Events {
		ev, err := decodeBatchEvent(be)
		if err != nil {
			writeError(w, batchItemError(i, err))
			return
		}
		events = append(events, ev)
	}

	ids, err := h.notificationService.EnqueueWithin(r.Context(), nil, events...)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, BatchEnqueuedResponse{
		IDs:    idStrings(ids),
		Status: string(notification.StatusPending),
	})
}

// batchItemError points the client at the offending item, and at the field
// inside it when validation names one.
func batchItemError(i int, err error) error {
	field := "events[" + strconv.Itoa(i) + "]"
	var ve *domainErrors.ValidationError
	if errors.As(err, &ve) {
		return domainErrors.NewValidationError(field+"."+ve.Field, ve.Message)
	}
	return domainErrors.NewValidationError(field, err.Error())
}

func decodeBatchEvent(be BatchEvent) (notification.Event, error) {
	var req eventRequest
	switch be.Type {
	case EventMemberAdded:
		req = &MemberAddedRequest{}
	case EventTaskAssigned:
		req = &TaskAssignedRequest{}
	case EventMentioned:
		req = &MentionedRequest{}
	case EventTaskDueSoon:
		req = &TaskDueSoonRequest{}
	default:
		return nil, domainErrors.ErrUnknownEvent
	}
	if err := json.Unmarshal(be.Data, req); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return req.toEvent(), nil
}

func (h *NotificationController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid notification id", Code: "invalid_id"})
		return
	}

	rec, err := h.notificationService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNotificationResponse(rec))
}

func (h *NotificationController) List(w http.ResponseWriter, r *http.Request) {
	filter := notification.ListFilter{Limit: defaultListLimit}

	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status := notification.Status(s)
		filter.Status = &status
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, domainErrors.NewValidationError("limit", "must be an integer"))
			return
		}
		filter.Limit = n
	}
	if o := q.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil {
			writeError(w, domainErrors.NewValidationError("offset", "must be an integer"))
			return
		}
		filter.Offset = n
	}

	recs, err := h.notificationService.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ListNotificationsResponse{
		Notifications: make([]NotificationResponse, 0, len(recs)),
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	}
	for _, rec := range recs {
		resp.Notifications = append(resp.Notifications, toNotificationResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}
