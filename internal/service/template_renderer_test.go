package service

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/notification"
	"github.com/cassiomorais/notifications/internal/domain/template"
	"github.com/cassiomorais/notifications/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SubstitutesFields(t *testing.T) {
	repo := testutil.NewMockTemplateRepository(&template.Template{
		Key:      "greeting",
		Subject:  "Hi {{Name}}",
		HTMLBody: "<p>{{if Due}}Due: {{Due}}{{end}}</p>",
	})
	r := NewTemplateRenderer(repo)

	subject, body, err := r.Render(context.Background(), "greeting", map[string]string{"Name": "Lan"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Lan", subject)
	assert.Equal(t, "<p></p>", body)
}

func TestRender_EscapesBodyOnly(t *testing.T) {
	repo := testutil.NewMockTemplateRepository(&template.Template{
		Key:      "k",
		Subject:  "From {{Who}}",
		HTMLBody: "<b>{{Who}}</b>",
	})
	r := NewTemplateRenderer(repo)

	subject, body, err := r.Render(context.Background(), "k", map[string]string{"Who": "Tom & <Jerry>"})
	require.NoError(t, err)
	assert.Equal(t, "From Tom & <Jerry>", subject)
	assert.Equal(t, "<b>Tom &amp; &lt;Jerry&gt;</b>", body)
}

func TestRender_DefaultTaskAssigned(t *testing.T) {
	r := NewTemplateRenderer(testutil.NewMockTemplateRepository(testutil.DefaultTemplates()...))
	due := time.Date(2026, 4, 2, 16, 0, 0, 0, time.UTC)
	payload := notification.TaskAssigned{
		RecipientEmail:    "dev@example.com",
		TaskName:          "Fix login",
		ProjectName:       "Apollo",
		DueAtUTC:          &due,
		AssignedByDisplay: "Ana",
	}.Payload()

	subject, body, err := r.Render(context.Background(), notification.TemplateTaskAssigned, payload)
	require.NoError(t, err)
	assert.Equal(t, "New task assigned: Fix login", subject)
	assert.Contains(t, body, "<b>Ana</b> assigned you <b>Fix login</b> in <b>Apollo</b>.")
	assert.Contains(t, body, "Due: <b>2026-04-02</b>")
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := NewTemplateRenderer(testutil.NewMockTemplateRepository())

	_, _, err := r.Render(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domainErrors.ErrTemplateNotFound)
	assert.True(t, domainErrors.IsPermanent(err))
}

func TestRender_InvalidStoredTemplateIsPermanent(t *testing.T) {
	repo := testutil.NewMockTemplateRepository(&template.Template{Key: "bad", Subject: "{{if X}}open", HTMLBody: ""})
	r := NewTemplateRenderer(repo)

	_, _, err := r.Render(context.Background(), "bad", nil)
	assert.ErrorIs(t, err, domainErrors.ErrTemplateInvalid)
	assert.True(t, domainErrors.IsPermanent(err))
}

func TestRender_StoreErrorIsTransient(t *testing.T) {
	repo := testutil.NewMockTemplateRepository()
	repo.GetFunc = func(ctx context.Context, key string) (*template.Template, error) {
		return nil, errors.New("timeout")
	}
	r := NewTemplateRenderer(repo)

	_, _, err := r.Render(context.Background(), "k", nil)
	require.Error(t, err)
	assert.False(t, domainErrors.IsPermanent(err))
}

func TestRender_RecompilesWhenTemplateChanges(t *testing.T) {
	repo := testutil.NewMockTemplateRepository(&template.Template{Key: "k", Subject: "v1", UpdatedAt: time.Unix(1, 0)})
	r := NewTemplateRenderer(repo)
	ctx := context.Background()

	subject, _, err := r.Render(ctx, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", subject)

	require.NoError(t, repo.Upsert(ctx, &template.Template{Key: "k", Subject: "v2", UpdatedAt: time.Unix(2, 0)}))
	subject, _, err = r.Render(ctx, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", subject)
}
