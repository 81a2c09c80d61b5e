package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      &Error{Message: "something went wrong"},
			expected: "something went wrong",
		},
		{
			name:     "with line",
			err:      &Error{Message: "unknown tag", Line: 5},
			expected: "line 5: unknown tag",
		},
		{
			name:     "with file",
			err:      &Error{Message: "parse error", File: "clock.tmpl", Line: 3},
			expected: "clock.tmpl: line 3: parse error",
		},
		{
			name:     "with hints",
			err:      &Error{Message: "unknown attribute 'txt' on element Label", Hints: []string{"Did you mean `text`?"}},
			expected: "unknown attribute 'txt' on element Label\n  Did you mean `text`?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNew_Catalog(t *testing.T) {
	err := New("PARSE-0002", map[string]any{"Attr": "txt", "Tag": "Label"})
	if err.Class != ClassParse {
		t.Errorf("Class = %q, want %q", err.Class, ClassParse)
	}
	if err.Message != "unknown attribute 'txt' on element Label" {
		t.Errorf("Message = %q", err.Message)
	}
	if !err.IsParseError() {
		t.Error("expected parse error")
	}
}

func TestNew_UnknownCode(t *testing.T) {
	err := New("NOPE-9999", map[string]any{"message": "custom"})
	if err.Message != "custom" || err.Code != "NOPE-9999" {
		t.Errorf("unexpected error: %+v", err)
	}
}

func TestWrapAndIs(t *testing.T) {
	cause := fmt.Errorf("no such file")
	err := Wrap("PLUGIN-0001", cause, map[string]any{"Path": "manifest.json"})
	if !strings.Contains(err.Message, "no such file") {
		t.Errorf("Message = %q, want GoError rendered", err.Message)
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	wrapped := fmt.Errorf("loading plugin: %w", err)
	if !Is(wrapped, "PLUGIN-0001") {
		t.Error("Is should find the code through fmt wrapping")
	}
	if Is(wrapped, "PLUGIN-0002") {
		t.Error("Is should not match a different code")
	}
}

func TestFindClosestMatch(t *testing.T) {
	tests := []struct {
		input      string
		candidates []string
		want       string
	}{
		{"txt", []string{"text", "toolTip", "visible"}, "text"},
		{"visibel", []string{"text", "visible"}, "visible"},
		{"text", []string{"text"}, ""},
		{"zzzzzz", []string{"text", "visible"}, ""},
		{"", []string{"text"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FindClosestMatch(tt.input, tt.candidates); got != tt.want {
				t.Errorf("FindClosestMatch(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithSuggestion(t *testing.T) {
	err := New("PARSE-0001", map[string]any{"Tag": "Labl", "Parent": "Frame"}).
		WithSuggestion("Labl", []string{"Label", "Frame"})
	if len(err.Hints) != 1 || err.Hints[0] != "Did you mean `Label`?" {
		t.Errorf("Hints = %v", err.Hints)
	}
}
