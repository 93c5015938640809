package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	"github.com/cassiomorais/notifications/internal/domain/directory"
	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/domain/template"
	"github.com/google/uuid"
)

// --- Outbox Repository ---

// MemOutboxRepository is an in-memory notification.Repository. Claims and
// outcome writes follow the same compare-and-swap rules as the Postgres
// repository, so it can back concurrency tests.
type MemOutboxRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*notification.Record

	InsertFunc func(ctx context.Context, rec *notification.Record) error
	ClaimFunc  func(ctx context.Context, req notification.ClaimRequest) ([]*notification.Record, error)
	// WriteFunc, when set, runs before every outcome write and can fail it
	WriteFunc func(ctx context.Context, rec *notification.Record) error
}

func NewMemOutboxRepository() *MemOutboxRepository {
	return &MemOutboxRepository{records: make(map[uuid.UUID]*notification.Record)}
}

func (m *MemOutboxRepository) Insert(ctx context.Context, rec *notification.Record) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = clone(rec)
	return nil
}

func (m *MemOutboxRepository) Claim(ctx context.Context, req notification.ClaimRequest) ([]*notification.Record, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*notification.Record
	for _, r := range m.records {
		if r.Status != notification.StatusPending || r.NextAttemptAt.After(req.Now) {
			continue
		}
		if r.ClaimedUntil != nil && !r.ClaimedUntil.Before(req.Now) {
			continue
		}
		due = append(due, r)
	}
	slices.SortFunc(due, func(a, b *notification.Record) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if req.Limit > 0 && len(due) > req.Limit {
		due = due[:req.Limit]
	}

	until := req.Now.Add(req.TTL)
	out := make([]*notification.Record, 0, len(due))
	for _, r := range due {
		owner := req.Owner
		r.ClaimedBy = &owner
		r.ClaimedUntil = &until
		out = append(out, clone(r))
	}
	return out, nil
}

func (m *MemOutboxRepository) MarkSent(ctx context.Context, rec *notification.Record, owner string) error {
	if rec.Status != notification.StatusSent {
		return domainErrors.ErrInvalidStateTransition
	}
	return m.write(ctx, rec, owner)
}

func (m *MemOutboxRepository) MarkRetry(ctx context.Context, rec *notification.Record, owner string) error {
	if rec.Status != notification.StatusPending {
		return domainErrors.ErrInvalidStateTransition
	}
	return m.write(ctx, rec, owner)
}

func (m *MemOutboxRepository) MarkDeadLetter(ctx context.Context, rec *notification.Record, owner string) error {
	if rec.Status != notification.StatusDeadLetter {
		return domainErrors.ErrInvalidStateTransition
	}
	return m.write(ctx, rec, owner)
}

func (m *MemOutboxRepository) write(ctx context.Context, rec *notification.Record, owner string) error {
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[rec.ID]
	if !ok || !ownedBy(stored, owner) || stored.Status != notification.StatusPending {
		return domainErrors.ErrClaimLost
	}
	if rec.Attempts < stored.Attempts {
		return domainErrors.ErrInvalidStateTransition
	}
	updated := clone(rec)
	updated.ClaimedBy = nil
	updated.ClaimedUntil = nil
	m.records[rec.ID] = updated
	return nil
}

func (m *MemOutboxRepository) Release(ctx context.Context, id uuid.UUID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[id]
	if !ok || !ownedBy(stored, owner) || stored.Status != notification.StatusPending {
		return domainErrors.ErrClaimLost
	}
	stored.ClaimedBy = nil
	stored.ClaimedUntil = nil
	return nil
}

func (m *MemOutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*notification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, domainErrors.ErrNotificationNotFound
	}
	return clone(r), nil
}

func (m *MemOutboxRepository) List(ctx context.Context, filter notification.ListFilter) ([]*notification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*notification.Record
	for _, r := range m.records {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, clone(r))
	}
	slices.SortFunc(out, func(a, b *notification.Record) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// All returns a snapshot of every stored record.
func (m *MemOutboxRepository) All() []*notification.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*notification.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, clone(r))
	}
	return out
}

func ownedBy(r *notification.Record, owner string) bool {
	return r.ClaimedBy != nil && *r.ClaimedBy == owner
}

func clone(r *notification.Record) *notification.Record {
	c := *r
	c.Payload = make(notification.Payload, len(r.Payload))
	for k, v := range r.Payload {
		c.Payload[k] = v
	}
	return &c
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Template Repository Mock ---

type MockTemplateRepository struct {
	mu        sync.Mutex
	templates map[string]*template.Template

	GetFunc func(ctx context.Context, key string) (*template.Template, error)
}

func NewMockTemplateRepository(templates ...*template.Template) *MockTemplateRepository {
	m := &MockTemplateRepository{templates: make(map[string]*template.Template)}
	for _, t := range templates {
		m.templates[t.Key] = t
	}
	return m
}

func (m *MockTemplateRepository) Get(ctx context.Context, key string) (*template.Template, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[key]
	if !ok {
		return nil, domainErrors.ErrTemplateNotFound
	}
	return t, nil
}

func (m *MockTemplateRepository) Upsert(ctx context.Context, t *template.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.Key] = t
	return nil
}

func (m *MockTemplateRepository) SeedMissing(ctx context.Context, templates []*template.Template) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range templates {
		if _, ok := m.templates[t.Key]; ok {
			continue
		}
		m.templates[t.Key] = t
		n++
	}
	return n, nil
}

// --- Sender Mock ---

// SentEmail is one call observed by MockSender.
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

type MockSender struct {
	mu   sync.Mutex
	sent []SentEmail

	SendFunc func(ctx context.Context, to, subject, htmlBody string) error
}

func (m *MockSender) Name() string { return "mock" }

func (m *MockSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, to, subject, htmlBody); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentEmail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (m *MockSender) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// --- Dead Letter Publisher Mock ---

type MockDeadLetterPublisher struct {
	mu        sync.Mutex
	published []*notification.Record

	PublishFunc func(ctx context.Context, rec *notification.Record) error
}

func (m *MockDeadLetterPublisher) PublishDeadLetter(ctx context.Context, rec *notification.Record) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, rec)
	return nil
}

func (m *MockDeadLetterPublisher) Published() []*notification.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.published)
}

// --- Directory Mocks ---

// MockDirectory implements directory.Users, directory.Projects and
// chat.ConversationReader over in-memory maps.
type MockDirectory struct {
	Users         map[string]*directory.User
	Projects      map[uuid.UUID]string
	Conversations map[uuid.UUID]string

	FindByUsernameFunc func(ctx context.Context, username string) (*directory.User, error)
}

func NewMockDirectory(users ...*directory.User) *MockDirectory {
	d := &MockDirectory{
		Users:         make(map[string]*directory.User),
		Projects:      make(map[uuid.UUID]string),
		Conversations: make(map[uuid.UUID]string),
	}
	for _, u := range users {
		d.Users[u.ID] = u
	}
	return d
}

func (d *MockDirectory) GetUserByID(ctx context.Context, id string) (*directory.User, error) {
	return d.Users[id], nil
}

func (d *MockDirectory) FindByUsername(ctx context.Context, username string) (*directory.User, error) {
	if d.FindByUsernameFunc != nil {
		return d.FindByUsernameFunc(ctx, username)
	}
	for _, u := range d.Users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, nil
}

func (d *MockDirectory) ProjectName(ctx context.Context, id uuid.UUID) (string, error) {
	return d.Projects[id], nil
}

func (d *MockDirectory) ConversationName(ctx context.Context, id uuid.UUID) (string, error) {
	return d.Conversations[id], nil
}

// --- Enqueuer Mock ---

type MockEnqueuer struct {
	mu     sync.Mutex
	events []notification.Event

	EnqueueFunc func(ctx context.Context, event notification.Event) (uuid.UUID, error)
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, event notification.Event) (uuid.UUID, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return uuid.New(), nil
}

func (m *MockEnqueuer) Events() []notification.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// --- Chat Mocks ---

type MockMessageRepository struct {
	mu       sync.Mutex
	messages []*chat.Message

	CreateFunc func(ctx context.Context, msg *chat.Message) error
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *chat.Message) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MockMessageRepository) Messages() []*chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

type MockBroadcaster struct {
	BroadcastFunc func(ctx context.Context, msg *chat.Message) error
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, msg *chat.Message) error {
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, msg)
	}
	return nil
}

type MockChatSender struct {
	SendFunc func(ctx context.Context, in chat.NewMessage, actorUserID string) (*chat.Message, error)
}

func (m *MockChatSender) Send(ctx context.Context, in chat.NewMessage, actorUserID string) (*chat.Message, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, in, actorUserID)
	}
	return &chat.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderUserID:   actorUserID,
		Content:        in.Content,
	}, nil
}
