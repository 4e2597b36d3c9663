package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Squash lowercases and strips all whitespace. Text pulled out of HTML
// arrives with arbitrary line breaks, so matching happens on the
// squashed form.
func Squash(s string) string {
	s = strings.ToLower(s)
	s = whitespaceRegex.ReplaceAllString(s, "")
	return s
}

// ContainsAny reports whether the squashed text contains any of the
// given phrases, compared whitespace-insensitively.
func ContainsAny(text string, phrases []string) bool {
	squashed := Squash(text)
	for _, phrase := range phrases {
		if strings.Contains(squashed, Squash(phrase)) {
			return true
		}
	}
	return false
}
