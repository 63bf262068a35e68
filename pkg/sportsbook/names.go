package sportsbook

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSelection normalizes a team or player name for matching across
// books: lowercase, accents stripped, whitespace collapsed.
func NormalizeSelection(name string) string {
	name = strings.ToLower(name)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	// Strip punctuation books disagree on
	name = strings.Map(func(r rune) rune {
		switch r {
		case '.', '\'', ',':
			return -1
		}
		return r
	}, name)

	// Normalize spaces
	name = strings.Join(strings.Fields(name), " ")

	return name
}
