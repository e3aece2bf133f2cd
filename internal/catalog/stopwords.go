package catalog

import "slices"

// stopWords is excluded from the lyric word ranking in Stats. Lyrics in the
// catalog are mostly Indonesian with some English.
var stopWords = toSet(
	// Indonesian
	"aku", "kau", "kamu", "engkau", "dia", "ia", "kita", "kami", "mereka", "ku", "mu", "nya",
	"yang", "dan", "di", "ke", "dari", "ini", "itu", "untuk", "dengan", "pada", "dalam",
	"akan", "tak", "tidak", "tiada", "bukan", "ada", "juga", "saja", "pun", "lagi", "sudah",
	"telah", "masih", "bila", "jika", "kalau", "karena", "agar", "supaya", "atau", "tapi",
	"namun", "hanya", "bisa", "dapat", "harus", "mau", "ingin", "sangat", "begitu", "seperti",
	"oh", "ooh", "uh", "yeah", "hey", "la", "na", "wo", "whoa", "ya", "yo",
	// English
	"the", "and", "to", "of", "in", "on", "is", "it", "my", "me", "you", "your", "we", "our",
	"be", "are", "was", "that", "this", "for", "with", "so", "but", "all", "can", "do", "don",
	"just", "not", "no", "up", "at", "if", "as", "he", "she", "they", "his", "her", "im",
	"ll", "re", "ve", "will", "what", "when", "there",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// StopWords returns the lyric stop list sorted, suitable for the
// vectorizer's analyzer options.
func StopWords() []string {
	out := make([]string, 0, len(stopWords))
	for w := range stopWords {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}
