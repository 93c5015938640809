// Package templating implements the placeholder language used by
// notification templates.
//
// The grammar is fixed:
//
//	{{Field}}              value of Field, empty when missing
//	{{Field|filter}}       value passed through one of: date, datetime, upper, lower
//	{{if Field}}...{{end}} emitted only when Field is present and non-blank
//
// Blocks may nest. Anything else inside {{ }} is a parse error.
package templating

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/cassiomorais/notifications/internal/domain/errors"
)

var filters = map[string]func(string) string{
	"date":     timeFilter("2006-01-02"),
	"datetime": timeFilter("2006-01-02 15:04 UTC"),
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
}

// timeFilter reformats RFC 3339 values; anything unparsable passes through.
func timeFilter(layout string) func(string) string {
	return func(v string) string {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
		if err != nil {
			return v
		}
		return t.UTC().Format(layout)
	}
}

type node interface {
	render(sb *strings.Builder, values map[string]string, escape bool)
}

type textNode string

func (n textNode) render(sb *strings.Builder, _ map[string]string, _ bool) {
	sb.WriteString(string(n))
}

type fieldNode struct {
	name   string
	filter string
}

func (n fieldNode) render(sb *strings.Builder, values map[string]string, escape bool) {
	v := values[n.name]
	if n.filter != "" {
		v = filters[n.filter](v)
	}
	if escape {
		v = html.EscapeString(v)
	}
	sb.WriteString(v)
}

type ifNode struct {
	field string
	body  []node
}

func (n ifNode) render(sb *strings.Builder, values map[string]string, escape bool) {
	if strings.TrimSpace(values[n.field]) == "" {
		return
	}
	for _, child := range n.body {
		child.render(sb, values, escape)
	}
}

// Template is a parsed template ready to execute.
type Template struct {
	nodes []node
}

// Parse compiles src. Errors wrap ErrTemplateInvalid.
func Parse(src string) (*Template, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	// stack of open blocks; the bottom entry is the template root
	type frame struct {
		field string
		pos   int
		nodes []node
	}
	stack := []*frame{{}}

	for _, tok := range tokens {
		top := stack[len(stack)-1]
		switch tok.kind {
		case tokenText:
			top.nodes = append(top.nodes, textNode(tok.text))
		case tokenField:
			top.nodes = append(top.nodes, fieldNode{name: tok.field, filter: tok.filter})
		case tokenIf:
			stack = append(stack, &frame{field: tok.field, pos: tok.pos})
		case tokenEnd:
			if len(stack) == 1 {
				return nil, fmt.Errorf("%w: unexpected end at offset %d", errors.ErrTemplateInvalid, tok.pos)
			}
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			parent.nodes = append(parent.nodes, ifNode{field: top.field, body: top.nodes})
		}
	}

	if len(stack) > 1 {
		open := stack[len(stack)-1]
		return nil, fmt.Errorf("%w: unclosed if %s at offset %d", errors.ErrTemplateInvalid, open.field, open.pos)
	}
	return &Template{nodes: stack[0].nodes}, nil
}

// Execute renders the template. When escape is set, substituted values are
// HTML-escaped; literal template text is never altered.
func (t *Template) Execute(values map[string]string, escape bool) string {
	var sb strings.Builder
	for _, n := range t.nodes {
		n.render(&sb, values, escape)
	}
	return sb.String()
}
