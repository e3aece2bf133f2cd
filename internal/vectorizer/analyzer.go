package vectorizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/surgebase/porter2"
)

// analyzer splits normalized text into vocabulary terms.
type analyzer struct {
	minLen int
	stop   map[string]struct{}
	stem   bool
}

func newAnalyzer(opts Options) analyzer {
	a := analyzer{minLen: opts.MinTokenLength, stem: opts.Stem}
	if a.minLen <= 0 {
		a.minLen = DefaultMinTokenLength
	}
	if len(opts.StopWords) > 0 {
		a.stop = make(map[string]struct{}, len(opts.StopWords))
		for _, w := range opts.StopWords {
			a.stop[w] = struct{}{}
		}
	}
	return a
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// terms returns the analyzed terms of text in order of appearance.
func (a analyzer) terms(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) })
	out := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) < a.minLen {
			continue
		}
		if _, isStop := a.stop[w]; isStop {
			continue
		}
		if a.stem {
			w = porter2.Stem(w)
			if w == "" {
				continue
			}
		}
		out = append(out, w)
	}
	return out
}
