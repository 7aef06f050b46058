package validators

import (
	"strings"
	"unicode"
)

// CleanText trims s, drops control characters and cuts it to at most maxRunes
// runes (no limit when maxRunes <= 0). Cuts never split a character.
func CleanText(s string, maxRunes int) string {
	s = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
	if maxRunes <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == maxRunes {
			return strings.TrimSpace(s[:i])
		}
		count++
	}
	return s
}
