package model

import (
	"strings"
	"unicode"
)

// Slugify normalises a field label into its unique machine name: lower case,
// word runs joined by underscores, everything else dropped.
func Slugify(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.TrimSpace(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
