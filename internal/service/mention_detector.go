package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cassiomorais/notifications/internal/domain/chat"
	"github.com/cassiomorais/notifications/internal/domain/directory"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultExcerptLength = 200
	projectConversation  = "proj:"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_.\-]+)`)

// NotificationEnqueuer accepts notification events.
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, event notification.Event) (uuid.UUID, error)
}

// MentionDetector turns @username tokens in chat messages into
// Mentioned notifications. It is registered as a chat.Observer.
type MentionDetector struct {
	users         directory.Users
	projects      directory.Projects
	conversations chat.ConversationReader
	enqueuer      NotificationEnqueuer
	excerptLength int
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

func NewMentionDetector(
	users directory.Users,
	projects directory.Projects,
	conversations chat.ConversationReader,
	enqueuer NotificationEnqueuer,
	excerptLength int,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *MentionDetector {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &MentionDetector{
		users:         users,
		projects:      projects,
		conversations: conversations,
		enqueuer:      enqueuer,
		excerptLength: excerptLength,
		metrics:       metrics,
		logger:        observability.Component(logger, "mention_detector"),
	}
}

// ExtractMentions returns the distinct usernames mentioned in text,
// compared case-insensitively; the first spelling seen wins. Trailing dots
// are kept since usernames may end in one; Detect strips them only when the
// dotted name is unknown.
func ExtractMentions(text string) []string {
	var (
		names []string
		seen  = make(map[string]struct{})
	)
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if strings.TrimRight(name, ".") == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Detect resolves mentions in text to notifiable users, dropping unknown
// names, the sender and users without an email address.
func (d *MentionDetector) Detect(ctx context.Context, text, senderUserID string) ([]*directory.User, error) {
	var (
		users []*directory.User
		seen  = make(map[string]struct{})
	)
	for _, name := range ExtractMentions(text) {
		u, err := d.resolve(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve mention %q: %w", name, err)
		}
		if u == nil || u.ID == senderUserID || !u.HasEmail() {
			continue
		}
		// "@carol." and "@carol" can resolve to the same user
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		users = append(users, u)
	}
	return users, nil
}

// resolve looks name up as written, then without trailing dots, which are
// usually sentence punctuation.
func (d *MentionDetector) resolve(ctx context.Context, name string) (*directory.User, error) {
	u, err := d.users.FindByUsername(ctx, name)
	if err != nil || u != nil {
		return u, err
	}
	if trimmed := strings.TrimRight(name, "."); trimmed != name {
		return d.users.FindByUsername(ctx, trimmed)
	}
	return nil, nil
}

// OnMessageSent enqueues one Mentioned notification per mentioned user.
// Every user is attempted; enqueue failures are joined.
func (d *MentionDetector) OnMessageSent(ctx context.Context, msg *chat.Message) error {
	users, err := d.Detect(ctx, msg.Content, msg.SenderUserID)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}

	sender, err := d.users.GetUserByID(ctx, msg.SenderUserID)
	if err != nil {
		d.logger.Warn().Err(err).Str("user_id", msg.SenderUserID).Msg("Sender lookup failed")
	}
	mentionCtx := d.resolveContext(ctx, msg.ConversationID)
	excerpt := Excerpt(msg.Content, d.excerptLength)

	var errs []error
	for _, u := range users {
		_, err := d.enqueuer.Enqueue(ctx, notification.Mentioned{
			RecipientEmail:    u.Email,
			RecipientUserID:   u.ID,
			ProjectID:         mentionCtx.projectID,
			ProjectName:       mentionCtx.projectName,
			CommentID:         msg.ID.String(),
			CommentExcerpt:    excerpt,
			ContextURL:        mentionCtx.url,
			MentionedByUserID: msg.SenderUserID,
			MentionedByName:   sender.DisplayName(),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue mention for %s: %w", u.ID, err))
			continue
		}
		d.metrics.MentionsDetected.Inc()
	}

	d.logger.Debug().
		Str("message_id", msg.ID.String()).
		Int("mentions", len(users)).
		Int("failed", len(errs)).
		Msg("Mentions processed")
	return errors.Join(errs...)
}

type mentionContext struct {
	projectID   string
	projectName string
	url         string
}

// resolveContext maps a "proj:<uuid>" conversation to its project.
// Anything else yields an empty context pointing at "/".
func (d *MentionDetector) resolveContext(ctx context.Context, conversationID uuid.UUID) mentionContext {
	empty := mentionContext{url: "/"}

	name, err := d.conversations.ConversationName(ctx, conversationID)
	if err != nil {
		d.logger.Warn().Err(err).Str("conversation_id", conversationID.String()).Msg("Conversation lookup failed")
		return empty
	}
	if len(name) < len(projectConversation) || !strings.EqualFold(name[:len(projectConversation)], projectConversation) {
		return empty
	}
	projectID, err := uuid.Parse(strings.TrimSpace(name[len(projectConversation):]))
	if err != nil {
		return empty
	}

	projectName, err := d.projects.ProjectName(ctx, projectID)
	if err != nil {
		d.logger.Warn().Err(err).Str("project_id", projectID.String()).Msg("Project lookup failed")
	}
	return mentionContext{
		projectID:   projectID.String(),
		projectName: projectName,
		url:         "/projects/" + projectID.String(),
	}
}

// Excerpt truncates content to max runes, appending "…" when cut. The
// content is otherwise left as written.
func Excerpt(content string, max int) string {
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return string(runes[:max]) + "…"
}
