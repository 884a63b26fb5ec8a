package clip

import "strings"

// codeMarkers are substrings whose presence tags content as code. Checked
// after the URL and email rules; first match wins.
var codeMarkers = []string{
	"{", "}", "();", "[]",
	"func ", "function", "def ", "class", "import ", "#include",
	"const ", "let ", "var ",
	"if ", "else ", "for ", "while ", "return ",
	"//", "/*", "*/",
}

// Classify assigns a ContentType to raw pasteboard text. It is pure and
// total: any input, including the empty string, yields a type.
//
// Priority order: URL, then email, then code, then plain text.
func Classify(text string) ContentType {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return TypeText
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return TypeURL
	}

	if looksLikeEmail(trimmed) {
		return TypeEmail
	}

	for _, marker := range codeMarkers {
		if strings.Contains(trimmed, marker) {
			return TypeCode
		}
	}

	return TypeText
}

// looksLikeEmail applies the cheap heuristic from the capture path: an "@"
// and a "." with no whitespace anywhere. Deliberately not RFC validation.
func looksLikeEmail(s string) bool {
	if !strings.Contains(s, "@") || !strings.Contains(s, ".") {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}) < 0
}
