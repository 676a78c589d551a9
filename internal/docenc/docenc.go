// Package docenc encodes the line-oriented records screen state embeds in
// host documents. A record is one line of whitespace-separated fields;
// Escape makes arbitrary values safe to carry as a single field.
package docenc

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Escape rewrites value so it survives as one whitespace-delimited field.
// Backslash, whitespace characters, and the empty string get escape forms;
// everything else passes through untouched.
func Escape(value string) string {
	if value == "" {
		return `\e`
	}
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ' ':
			b.WriteString(`\s`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape reverses Escape. Unknown escape sequences are an error rather
// than a silent passthrough so format drift surfaces at load time.
func Unescape(field string) (string, error) {
	if field == `\e` {
		return "", nil
	}
	if !strings.ContainsRune(field, '\\') {
		return field, nil
	}
	var b strings.Builder
	escaped := false
	for _, r := range field {
		if !escaped {
			if r == '\\' {
				escaped = true
				continue
			}
			b.WriteRune(r)
			continue
		}
		switch r {
		case '\\':
			b.WriteRune('\\')
		case 's':
			b.WriteRune(' ')
		case 't':
			b.WriteRune('\t')
		case 'n':
			b.WriteRune('\n')
		case 'r':
			b.WriteRune('\r')
		default:
			return "", fmt.Errorf("docenc: unknown escape %q in field %q", string(r), field)
		}
		escaped = false
	}
	if escaped {
		return "", fmt.Errorf("docenc: dangling escape in field %q", field)
	}
	return b.String(), nil
}

// EncodeLine renders fields as one record line.
func EncodeLine(fields ...string) string {
	escaped := make([]string, len(fields))
	for i, field := range fields {
		escaped[i] = Escape(field)
	}
	return strings.Join(escaped, " ")
}

// SplitLine splits one record line back into unescaped fields.
func SplitLine(line string) ([]string, error) {
	raw := strings.Fields(line)
	fields := make([]string, len(raw))
	for i, field := range raw {
		value, err := Unescape(field)
		if err != nil {
			return nil, err
		}
		fields[i] = value
	}
	return fields, nil
}

// Scanner iterates the records of an embedded block, skipping blank lines
// and # comments.
type Scanner struct {
	scanner *bufio.Scanner
	fields  []string
	line    int
	err     error
}

// NewScanner wraps r for record iteration.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{scanner: bufio.NewScanner(r)}
}

// Scan advances to the next record. It returns false at the end of input or
// on the first malformed record; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields, err := SplitLine(text)
		if err != nil {
			s.err = fmt.Errorf("docenc: line %d: %w", s.line, err)
			return false
		}
		s.fields = fields
		return true
	}
	s.err = s.scanner.Err()
	return false
}

// Fields returns the current record's unescaped fields. The slice is valid
// until the next Scan.
func (s *Scanner) Fields() []string { return s.fields }

// Line returns the 1-based input line of the current record.
func (s *Scanner) Line() int { return s.line }

// Err returns the first error hit while scanning, nil at normal end of
// input.
func (s *Scanner) Err() error { return s.err }
