package templating

import (
	"testing"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/cassiomorais/notifications/internal/domain/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		values   map[string]string
		escape   bool
		expected string
	}{
		{
			name:     "simple substitution",
			src:      "Hi {{Name}}",
			values:   map[string]string{"Name": "Lan"},
			expected: "Hi Lan",
		},
		{
			name:     "whitespace inside action",
			src:      "Hi {{ Name }}!",
			values:   map[string]string{"Name": "Lan"},
			expected: "Hi Lan!",
		},
		{
			name:     "missing field renders empty",
			src:      "Hi {{Name}}.",
			values:   map[string]string{},
			expected: "Hi .",
		},
		{
			name:     "conditional without field",
			src:      "Task{{if Due}} Due: {{Due}}{{end}}.",
			values:   map[string]string{},
			expected: "Task.",
		},
		{
			name:     "conditional with blank field",
			src:      "{{if Due}}Due: {{Due}}{{end}}",
			values:   map[string]string{"Due": "   "},
			expected: "",
		},
		{
			name:     "conditional with field",
			src:      "{{if Due}}Due: {{Due}}{{end}}",
			values:   map[string]string{"Due": "tomorrow"},
			expected: "Due: tomorrow",
		},
		{
			name:     "nested conditionals",
			src:      "{{if A}}a{{if B}}b{{end}}{{end}}",
			values:   map[string]string{"A": "1"},
			expected: "a",
		},
		{
			name:     "date filter",
			src:      "{{Due|date}}",
			values:   map[string]string{"Due": "2026-04-02T16:00:00Z"},
			expected: "2026-04-02",
		},
		{
			name:     "datetime filter normalizes to UTC",
			src:      "{{ Due | datetime }}",
			values:   map[string]string{"Due": "2026-04-02T18:30:00+02:00"},
			expected: "2026-04-02 16:30 UTC",
		},
		{
			name:     "date filter passes through unparsable value",
			src:      "{{Due|date}}",
			values:   map[string]string{"Due": "next week"},
			expected: "next week",
		},
		{
			name:     "case filters",
			src:      "{{A|upper}} {{B|lower}}",
			values:   map[string]string{"A": "abc", "B": "DEF"},
			expected: "ABC def",
		},
		{
			name:     "escape values only",
			src:      "<b>{{Name}}</b>",
			values:   map[string]string{"Name": "<script>"},
			escape:   true,
			expected: "<b>&lt;script&gt;</b>",
		},
		{
			name:     "no escape for subject",
			src:      "{{Name}} & co",
			values:   map[string]string{"Name": "Tom & Jerry"},
			expected: "Tom & Jerry & co",
		},
		{
			name:     "lone braces are literal",
			src:      "a } b { c",
			expected: "a } b { c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tmpl.Execute(tt.values, tt.escape))
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unclosed action", "Hi {{Name"},
		{"empty action", "Hi {{ }}"},
		{"unexpected end", "Hi{{end}}"},
		{"unclosed if", "{{if A}}text"},
		{"if without field", "{{if}}x{{end}}"},
		{"if with two fields", "{{if A B}}x{{end}}"},
		{"unknown filter", "{{Due|shout}}"},
		{"invalid field name", "{{first name}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse(tt.src)
			assert.Nil(t, tmpl)
			assert.ErrorIs(t, err, domainErrors.ErrTemplateInvalid)
		})
	}
}

func TestDefaultTemplatesParse(t *testing.T) {
	for _, tmpl := range template.Defaults() {
		t.Run(tmpl.Key, func(t *testing.T) {
			_, err := Parse(tmpl.Subject)
			require.NoError(t, err)
			_, err = Parse(tmpl.HTMLBody)
			require.NoError(t, err)
		})
	}
}
