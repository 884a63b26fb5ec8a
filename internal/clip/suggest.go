package clip

import "strings"

// SuggestNameMaxChars caps suggested snippet names.
const SuggestNameMaxChars = 50

// UntitledSnippetName is the fallback when content yields no usable name.
const UntitledSnippetName = "Untitled Snippet"

// SuggestName derives a display name for a snippet from its content: the
// first line of the trimmed text, truncated to SuggestNameMaxChars runes.
// Empty content falls back to UntitledSnippetName.
func SuggestName(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return UntitledSnippetName
	}

	name := trimmed
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		name = strings.TrimSpace(trimmed[:idx])
	}
	if name == "" {
		return UntitledSnippetName
	}

	runes := []rune(name)
	if len(runes) > SuggestNameMaxChars {
		name = string(runes[:SuggestNameMaxChars])
	}
	return name
}
