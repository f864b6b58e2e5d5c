package world

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxNameRunes = 32

// normalizeName canonicalises a display name: NFC, no control characters,
// collapsed whitespace, at most maxNameRunes runes.
func normalizeName(raw string) string {
	composed := norm.NFC.String(raw)
	var b strings.Builder
	count := 0
	lastSpace := true
	for _, r := range composed {
		if count >= maxNameRunes {
			break
		}
		switch {
		case unicode.IsSpace(r):
			if lastSpace {
				continue
			}
			r = ' '
			lastSpace = true
		case unicode.IsControl(r):
			continue
		default:
			lastSpace = false
		}
		b.WriteRune(r)
		count++
	}
	return strings.TrimRight(b.String(), " ")
}
