package contacts

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultTemplate is the message offered when nothing has been composed yet.
const DefaultTemplate = "Hi {name}! 👋\n\nThis is an automated message. How can I help you?"

var (
	// ErrUnknownField is returned when a placeholder names a column the contact does not have.
	ErrUnknownField = errors.New("contacts: unknown template field")
	// ErrBadTemplate is returned for unbalanced braces.
	ErrBadTemplate = errors.New("contacts: malformed template")
)

// token is either literal text or a placeholder name.
type token struct {
	text  string
	field bool
}

// parse splits a template into literal and placeholder tokens. "{{" and "}}"
// are literal braces.
func parse(tmpl string) ([]token, error) {
	var (
		tokens []token
		lit    strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, token{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(tmpl[i+1:], "{}")
			if end < 0 || tmpl[i+1+end] != '}' {
				return nil, fmt.Errorf("%w: unterminated '{' at offset %d", ErrBadTemplate, i)
			}
			name := tmpl[i+1 : i+1+end]
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("%w: empty placeholder at offset %d", ErrBadTemplate, i)
			}
			flush()
			tokens = append(tokens, token{text: name, field: true})
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w: single '}' at offset %d", ErrBadTemplate, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return tokens, nil
}

// Render substitutes {field} placeholders with the contact's column values.
func Render(tmpl string, c Contact) (string, error) {
	tokens, err := parse(tmpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(tmpl))
	for _, t := range tokens {
		if !t.field {
			b.WriteString(t.text)
			continue
		}
		v, ok := c.Fields[t.text]
		if !ok {
			return "", fmt.Errorf("%w: {%s}", ErrUnknownField, t.text)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Placeholders returns the distinct field names referenced by tmpl, in order
// of first appearance.
func Placeholders(tmpl string) ([]string, error) {
	tokens, err := parse(tmpl)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, t := range tokens {
		if t.field && !slices.Contains(names, t.text) {
			names = append(names, t.text)
		}
	}
	return names, nil
}

// Validate checks that tmpl is well formed and only references columns.
func Validate(tmpl string, columns []string) error {
	if strings.TrimSpace(tmpl) == "" {
		return fmt.Errorf("%w: message is empty", ErrBadTemplate)
	}
	names, err := Placeholders(tmpl)
	if err != nil {
		return err
	}
	var unknown []string
	for _, n := range names {
		if !slices.Contains(columns, n) {
			unknown = append(unknown, "{"+n+"}")
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownField, strings.Join(unknown, ", "))
	}
	return nil
}

// Truncate shortens msg to maxLen runes, adding "..." if truncated.
// If maxLen is <= 3, it truncates without the "..." suffix.
func Truncate(msg string, maxLen int) string {
	r := []rune(msg)
	if len(r) <= maxLen {
		return msg
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
