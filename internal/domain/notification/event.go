package notification

import (
	"strings"
	"time"
)

// Template keys, one per event variant.
const (
	TemplateProjectMemberAdded = "project_member_added"
	TemplateTaskAssigned       = "task_assigned"
	TemplateUserMentioned      = "user_mentioned"
	TemplateTaskDueSoon        = "task_due_soon"
)

// Payload field names shared by producers and templates.
const (
	FieldRecipientEmail     = "RecipientEmail"
	FieldRecipientUserID    = "RecipientUserId"
	FieldProjectID          = "ProjectId"
	FieldProjectName        = "ProjectName"
	FieldTaskID             = "TaskId"
	FieldTaskName           = "TaskName"
	FieldDueAtUTC           = "DueAtUtc"
	FieldAddedByDisplay     = "AddedByDisplay"
	FieldAddedByUsername    = "AddedByUsername"
	FieldAssignedByDisplay  = "AssignedByDisplay"
	FieldAssignedByUsername = "AssignedByUsername"
	FieldCommentID          = "CommentId"
	FieldCommentExcerpt     = "CommentExcerpt"
	FieldContextURL         = "ContextUrl"
	FieldMentionedByUserID  = "MentionedByUserId"
	FieldMentionedByName    = "MentionedByName"
)

// Payload holds the named template fields of a record. Dates are stored
// as RFC 3339 UTC strings so they survive JSON round trips unchanged.
type Payload map[string]string

// Set stores value under key. Blank values are kept so the field exists.
func (p Payload) Set(key, value string) {
	p[key] = value
}

// SetTime stores t as RFC 3339 UTC, or nothing when t is nil.
func (p Payload) SetTime(key string, t *time.Time) {
	if t == nil || t.IsZero() {
		return
	}
	p[key] = t.UTC().Format(time.RFC3339)
}

// Lookup returns the value for key and whether it is present and non-blank.
func (p Payload) Lookup(key string) (string, bool) {
	v, ok := p[key]
	if !ok || strings.TrimSpace(v) == "" {
		return v, false
	}
	return v, true
}

// Event is the closed set of notification events accepted by Enqueue.
type Event interface {
	TemplateKey() string
	Recipient() (email, userID string)
	Payload() Payload
	isEvent()
}

// MemberAdded is raised when a user is added to a project.
type MemberAdded struct {
	RecipientEmail  string
	RecipientUserID string
	ProjectID       string
	ProjectName     string
	AddedByDisplay  string
	AddedByUsername string
}

func (MemberAdded) isEvent()            {}
func (MemberAdded) TemplateKey() string { return TemplateProjectMemberAdded }
func (e MemberAdded) Recipient() (string, string) {
	return e.RecipientEmail, e.RecipientUserID
}

func (e MemberAdded) Payload() Payload {
	p := Payload{}
	p.Set(FieldRecipientEmail, e.RecipientEmail)
	p.Set(FieldRecipientUserID, e.RecipientUserID)
	p.Set(FieldProjectID, e.ProjectID)
	p.Set(FieldProjectName, e.ProjectName)
	p.Set(FieldAddedByDisplay, e.AddedByDisplay)
	p.Set(FieldAddedByUsername, e.AddedByUsername)
	return p
}

// TaskAssigned is raised for each assignee of a task.
type TaskAssigned struct {
	RecipientEmail     string
	RecipientUserID    string
	TaskID             string
	TaskName           string
	ProjectID          string
	ProjectName        string
	DueAtUTC           *time.Time
	AssignedByDisplay  string
	AssignedByUsername string
}

func (TaskAssigned) isEvent()            {}
func (TaskAssigned) TemplateKey() string { return TemplateTaskAssigned }
func (e TaskAssigned) Recipient() (string, string) {
	return e.RecipientEmail, e.RecipientUserID
}

func (e TaskAssigned) Payload() Payload {
	p := Payload{}
	p.Set(FieldRecipientEmail, e.RecipientEmail)
	p.Set(FieldRecipientUserID, e.RecipientUserID)
	p.Set(FieldTaskID, e.TaskID)
	p.Set(FieldTaskName, e.TaskName)
	p.Set(FieldProjectID, e.ProjectID)
	p.Set(FieldProjectName, e.ProjectName)
	p.SetTime(FieldDueAtUTC, e.DueAtUTC)
	p.Set(FieldAssignedByDisplay, e.AssignedByDisplay)
	p.Set(FieldAssignedByUsername, e.AssignedByUsername)
	return p
}

// Mentioned is raised when a user is @-mentioned in a comment or chat message.
// Task and project fields are empty when the context is unknown.
type Mentioned struct {
	RecipientEmail    string
	RecipientUserID   string
	TaskID            string
	TaskName          string
	ProjectID         string
	ProjectName       string
	CommentID         string
	CommentExcerpt    string
	ContextURL        string
	MentionedByUserID string
	MentionedByName   string
}

func (Mentioned) isEvent()            {}
func (Mentioned) TemplateKey() string { return TemplateUserMentioned }
func (e Mentioned) Recipient() (string, string) {
	return e.RecipientEmail, e.RecipientUserID
}

func (e Mentioned) Payload() Payload {
	p := Payload{}
	p.Set(FieldRecipientEmail, e.RecipientEmail)
	p.Set(FieldRecipientUserID, e.RecipientUserID)
	p.Set(FieldTaskID, e.TaskID)
	p.Set(FieldTaskName, e.TaskName)
	p.Set(FieldProjectID, e.ProjectID)
	p.Set(FieldProjectName, e.ProjectName)
	p.Set(FieldCommentID, e.CommentID)
	p.Set(FieldCommentExcerpt, e.CommentExcerpt)
	p.Set(FieldContextURL, e.ContextURL)
	p.Set(FieldMentionedByUserID, e.MentionedByUserID)
	p.Set(FieldMentionedByName, e.MentionedByName)
	return p
}

// TaskDueSoon reminds a recipient that a task is approaching its due date.
type TaskDueSoon struct {
	RecipientEmail  string
	RecipientUserID string
	TaskID          string
	TaskName        string
	ProjectName     string
	DueAtUTC        time.Time
}

func (TaskDueSoon) isEvent()            {}
func (TaskDueSoon) TemplateKey() string { return TemplateTaskDueSoon }
func (e TaskDueSoon) Recipient() (string, string) {
	return e.RecipientEmail, e.RecipientUserID
}

func (e TaskDueSoon) Payload() Payload {
	p := Payload{}
	p.Set(FieldRecipientEmail, e.RecipientEmail)
	p.Set(FieldRecipientUserID, e.RecipientUserID)
	p.Set(FieldTaskID, e.TaskID)
	p.Set(FieldTaskName, e.TaskName)
	p.Set(FieldProjectName, e.ProjectName)
	p.SetTime(FieldDueAtUTC, &e.DueAtUTC)
	return p
}
