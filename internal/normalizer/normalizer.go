// Package normalizer canonicalises lyric text before it is vectorised. The
// same function runs when the index is built and on every query.
package normalizer

import (
	"strings"
	"unicode"
)

// Punctuation is the fixed ASCII punctuation set stripped from lyrics.
const Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var punct [128]bool

func init() {
	for i := 0; i < len(Punctuation); i++ {
		punct[Punctuation[i]] = true
	}
}

// isSeparator reports the ASCII file, group, record and unit separators,
// which split words like whitespace.
func isSeparator(r rune) bool { return r >= 0x1c && r <= 0x1f }

// Normalize lower-cases text, drops ASCII punctuation and decimal digits,
// and collapses whitespace runs (including the ASCII separators U+001C to
// U+001F) into single spaces with no leading or trailing space.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for _, r := range lowered {
		switch {
		case r < 128 && punct[r]:
			continue
		case unicode.IsDigit(r):
			continue
		case unicode.IsSpace(r), isSeparator(r):
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
