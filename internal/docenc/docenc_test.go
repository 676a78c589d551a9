package docenc

import (
	"strings"
	"testing"
)

func TestEscapeRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name    string
		value   string
		encoded string
	}{
		{"plain", "HD_1080", "HD_1080"},
		{"empty", "", `\e`},
		{"spaces", "two words", `two\swords`},
		{"tab", "a\tb", `a\tb`},
		{"newline", "a\nb", `a\nb`},
		{"carriage return", "a\rb", `a\rb`},
		{"backslash", `C:\out`, `C:\\out`},
		{"mixed", " \\\n", `\s\\\n`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Escape(tc.value)
			if encoded != tc.encoded {
				t.Fatalf("Escape(%q) = %q, want %q", tc.value, encoded, tc.encoded)
			}
			back, err := Unescape(encoded)
			if err != nil {
				t.Fatalf("Unescape(%q): %v", encoded, err)
			}
			if back != tc.value {
				t.Fatalf("Unescape(%q) = %q, want %q", encoded, back, tc.value)
			}
		})
	}
}

func TestUnescapeRejectsDrift(t *testing.T) {
	if _, err := Unescape(`a\qb`); err == nil {
		t.Fatalf("unknown escape accepted")
	}
	if _, err := Unescape(`trailing\`); err == nil {
		t.Fatalf("dangling escape accepted")
	}
}

func TestEncodeLineKeepsFieldsApart(t *testing.T) {
	line := EncodeLine("var", "Godzilla.label", "GODZILLA // 4K", "")
	if strings.Count(line, " ") != 3 {
		t.Fatalf("field boundaries drifted: %q", line)
	}
	fields, err := SplitLine(line)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"var", "Godzilla.label", "GODZILLA // 4K", ""}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v", fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("fields[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}

func TestScannerSkipsCommentsAndBlanks(t *testing.T) {
	input := "# header comment\n\n  \nscreen A\n# between\nvar A.fps 48\n"
	s := NewScanner(strings.NewReader(input))

	if !s.Scan() {
		t.Fatalf("first record missing: %v", s.Err())
	}
	if got := s.Fields(); got[0] != "screen" || got[1] != "A" {
		t.Fatalf("first record = %v", got)
	}
	if s.Line() != 4 {
		t.Fatalf("line = %d, want 4", s.Line())
	}

	if !s.Scan() {
		t.Fatalf("second record missing: %v", s.Err())
	}
	if got := s.Fields(); got[2] != "48" {
		t.Fatalf("second record = %v", got)
	}

	if s.Scan() {
		t.Fatalf("phantom record: %v", s.Fields())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("clean end returned %v", err)
	}
}

func TestScannerStopsOnMalformedField(t *testing.T) {
	s := NewScanner(strings.NewReader("ok line\nbad \\x field\n"))
	if !s.Scan() {
		t.Fatalf("first record missing: %v", s.Err())
	}
	if s.Scan() {
		t.Fatalf("malformed record scanned: %v", s.Fields())
	}
	err := s.Err()
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected a line-numbered error, got %v", err)
	}
}
