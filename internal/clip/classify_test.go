package clip

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ContentType
	}{
		{
			name:  "http url",
			input: "http://example.com/page",
			want:  TypeURL,
		},
		{
			name:  "https url",
			input: "https://x.com",
			want:  TypeURL,
		},
		{
			name:  "url with surrounding whitespace",
			input: "  https://example.com  \n",
			want:  TypeURL,
		},
		{
			name:  "email address",
			input: "a@b.com",
			want:  TypeEmail,
		},
		{
			name:  "email-like text with spaces is not email",
			input: "contact me a@b.com today",
			want:  TypeText,
		},
		{
			name:  "at sign without dot is not email",
			input: "user@localhost",
			want:  TypeText,
		},
		{
			name:  "go function",
			input: "func f() { }",
			want:  TypeCode,
		},
		{
			name:  "javascript const",
			input: "const x = 5;",
			want:  TypeCode,
		},
		{
			name:  "line comment",
			input: "// fix this later",
			want:  TypeCode,
		},
		{
			name:  "plain text",
			input: "hello world",
			want:  TypeText,
		},
		{
			name:  "empty string",
			input: "",
			want:  TypeText,
		},
		{
			name:  "whitespace only",
			input: "   \t\n",
			want:  TypeText,
		},
		{
			name:  "url wins over code markers",
			input: "https://example.com/{id}",
			want:  TypeURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			if got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	inputs := []string{"https://x.com", "a@b.com", "func f() { }", "hello world", ""}
	for _, input := range inputs {
		first := Classify(input)
		for i := 0; i < 10; i++ {
			if got := Classify(input); got != first {
				t.Fatalf("Classify(%q) not deterministic: %q then %q", input, first, got)
			}
		}
	}
}
