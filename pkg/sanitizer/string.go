package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize drops control characters, collapses whitespace runs
// into a single space and trims both ends.
func TrimAndNormalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func NormalizeLabel(label string) string {
	return TrimAndNormalize(label)
}
