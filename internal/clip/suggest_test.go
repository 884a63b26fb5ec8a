package clip

import (
	"strings"
	"testing"
)

func TestSuggestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single line",
			input: "grocery list",
			want:  "grocery list",
		},
		{
			name:  "multi line takes first",
			input: "SELECT * FROM users\nWHERE id = 1",
			want:  "SELECT * FROM users",
		},
		{
			name:  "leading whitespace trimmed",
			input: "\n\n  hello\nworld",
			want:  "hello",
		},
		{
			name:  "empty content",
			input: "",
			want:  UntitledSnippetName,
		},
		{
			name:  "whitespace only",
			input: " \t\n ",
			want:  UntitledSnippetName,
		},
		{
			name:  "long first line truncated",
			input: strings.Repeat("a", 80),
			want:  strings.Repeat("a", 50),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestName(tt.input)
			if got != tt.want {
				t.Errorf("SuggestName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	id := NewID()
	short := ShortID(id)
	if len(short) != 8 {
		t.Errorf("ShortID length = %d, want 8", len(short))
	}
	if short != strings.ToLower(id[:8]) {
		t.Errorf("ShortID(%q) = %q, want lowercased prefix", id, short)
	}
	if ShortID("abc") != "abc" {
		t.Errorf("ShortID should pass short ids through")
	}
}

func TestNewEntry(t *testing.T) {
	e := NewEntry("https://example.com")
	if len(e.ID) != 26 {
		t.Errorf("ID length = %d, want 26 (ULID)", len(e.ID))
	}
	if e.ContentType != TypeURL {
		t.Errorf("ContentType = %q, want %q", e.ContentType, TypeURL)
	}
	if e.CreatedAt == 0 {
		t.Error("CreatedAt should be set")
	}
}
