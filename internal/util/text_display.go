package util

import (
	"strings"
	"unicode"
)

// DisplaySnippet flattens s to one clean line of at most maxRunes runes, adding "..."
// when it was cut.
func DisplaySnippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 80
	}
	s = strings.Join(strings.Fields(SanitizeText(s)), " ")

	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsPrint(r) {
			out = append(out, r)
		}
	}
	if len(out) > maxRunes {
		return strings.TrimSpace(string(out[:maxRunes])) + "..."
	}
	return string(out)
}
