package templating

import (
	"fmt"
	"strings"

	"github.com/cassiomorais/notifications/internal/domain/errors"
)

const (
	leftDelim  = "{{"
	rightDelim = "}}"
)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenField
	tokenIf
	tokenEnd
)

func (k tokenKind) String() string {
	switch k {
	case tokenText:
		return "text"
	case tokenField:
		return "field"
	case tokenIf:
		return "if"
	case tokenEnd:
		return "end"
	}
	return "unknown"
}

type token struct {
	kind   tokenKind
	text   string // literal text for tokenText
	field  string // field name for tokenField and tokenIf
	filter string // optional filter for tokenField
	pos    int    // byte offset of the token in the source
}

// lex splits src into a flat token stream. Whitespace inside an action is
// ignored, so "{{ Name }}" and "{{Name}}" are equivalent.
func lex(src string) ([]token, error) {
	var tokens []token
	pos := 0
	for pos < len(src) {
		start := strings.Index(src[pos:], leftDelim)
		if start < 0 {
			tokens = append(tokens, token{kind: tokenText, text: src[pos:], pos: pos})
			break
		}
		if start > 0 {
			tokens = append(tokens, token{kind: tokenText, text: src[pos : pos+start], pos: pos})
		}
		actionPos := pos + start
		inner := src[actionPos+len(leftDelim):]
		end := strings.Index(inner, rightDelim)
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed action at offset %d", errors.ErrTemplateInvalid, actionPos)
		}
		tok, err := lexAction(strings.TrimSpace(inner[:end]), actionPos)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		pos = actionPos + len(leftDelim) + end + len(rightDelim)
	}
	return tokens, nil
}

func lexAction(action string, pos int) (token, error) {
	if action == "" {
		return token{}, fmt.Errorf("%w: empty action at offset %d", errors.ErrTemplateInvalid, pos)
	}
	if action == "end" {
		return token{kind: tokenEnd, pos: pos}, nil
	}

	fields := strings.Fields(action)
	if fields[0] == "if" {
		if len(fields) != 2 || !validName(fields[1]) {
			return token{}, fmt.Errorf("%w: malformed if at offset %d", errors.ErrTemplateInvalid, pos)
		}
		return token{kind: tokenIf, field: fields[1], pos: pos}, nil
	}

	name, filter, hasFilter := strings.Cut(action, "|")
	name = strings.TrimSpace(name)
	filter = strings.TrimSpace(filter)
	if !validName(name) {
		return token{}, fmt.Errorf("%w: invalid field %q at offset %d", errors.ErrTemplateInvalid, name, pos)
	}
	if hasFilter {
		if _, ok := filters[filter]; !ok {
			return token{}, fmt.Errorf("%w: unknown filter %q at offset %d", errors.ErrTemplateInvalid, filter, pos)
		}
	}
	return token{kind: tokenField, field: name, filter: filter, pos: pos}, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
