package export

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// NewlineMode selects how embedded line breaks are represented in a field.
type NewlineMode string

// Newline modes. One mode applies to a whole export call.
const (
	NewlineSpace   NewlineMode = "space"
	NewlineEscaped NewlineMode = "escaped"
)

// ErrInvalidNewlineMode is returned for unknown newline modes.
var ErrInvalidNewlineMode = errors.New("newline mode must be 'space' or 'escaped'")

// ErrMalformedField is returned by UnquoteField for input that FormatField
// could not have produced.
var ErrMalformedField = errors.New("malformed quoted field")

// ParseNewlineMode parses a newline mode; the empty string means NewlineSpace.
func ParseNewlineMode(s string) (NewlineMode, error) {
	switch NewlineMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", NewlineSpace:
		return NewlineSpace, nil
	case NewlineEscaped:
		return NewlineEscaped, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidNewlineMode, s)
	}
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// FormatField turns one value into a quoted CSV field. Invalid UTF-8 bytes
// become U+FFFD, then the value is truncated, line breaks are normalized,
// whitespace is collapsed and embedded quotes are doubled.
func FormatField(value string, cfg Config) string {
	cfg = cfg.withDefaults()
	value = strings.ToValidUTF8(value, string(utf8.RuneError))
	if value == "" {
		return `""`
	}

	value = truncate(value, cfg.MaxFieldLength, cfg.Ellipsis)

	value = lineBreaks.Replace(value)
	if cfg.NewlineMode == NewlineEscaped {
		value = strings.ReplaceAll(value, "\n", `\n`)
	}

	// Fields splits on any run of Unicode whitespace, which also covers the
	// remaining line breaks in space mode and trims both ends.
	value = strings.Join(strings.Fields(value), " ")

	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// UnquoteField reverses the quoting done by FormatField.
func UnquoteField(field string) (string, error) {
	if len(field) < 2 || field[0] != '"' || field[len(field)-1] != '"' {
		return "", fmt.Errorf("%w: %q is not quote-wrapped", ErrMalformedField, field)
	}
	inner := field[1 : len(field)-1]

	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(inner) || inner[i+1] != '"' {
			return "", fmt.Errorf("%w: lone quote at offset %d", ErrMalformedField, i+1)
		}
		b.WriteByte('"')
		i++
	}
	return b.String(), nil
}

func truncate(s string, limit int, ellipsis string) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + ellipsis
}
