// Package arabic normalises Arabic text for word-level comparison.
//
// Normalisation strips harakat, the superscript alef and tatweel, replaces
// anything that is not a letter of the base Arabic block with a space and
// collapses runs of whitespace. The output is suitable for exact token
// equality checks between a reference verse and a speech-to-text result.
package arabic

import "strings"

const (
	blockStart = '\u0600'
	blockEnd   = '\u06FF'
)

// IsDiacritic reports whether r is one of the marks removed by [Normalize]:
// the harakat range U+064B–U+065F, the superscript alef U+0670 and the
// tatweel U+0640.
func IsDiacritic(r rune) bool {
	return (r >= '\u064B' && r <= '\u065F') || r == '\u0670' || r == '\u0640'
}

// Normalize returns text with diacritics removed, every rune outside the
// Arabic block (other than whitespace) replaced by a space, whitespace runs
// collapsed to a single space and the result trimmed. The empty string maps
// to the empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case IsDiacritic(r):
			continue
		case r >= blockStart && r <= blockEnd:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		default:
			// Whitespace and foreign runes both become a separator.
			pendingSpace = true
		}
	}
	return b.String()
}

// Tokenize normalises text and splits it into words. Empty tokens are never
// returned; the result is nil for text without any Arabic letters.
func Tokenize(text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	return strings.Split(norm, " ")
}
