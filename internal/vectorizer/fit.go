package vectorizer

import (
	"cmp"
	"errors"
	"math"
	"slices"
)

// Fit learns a vocabulary and smoothed IDF weights from normalized
// documents: idf(t) = ln((1+n)/(1+df(t))) + 1. Columns follow ascending
// lexical term order.
func Fit(docs []string, opts Options) (*Vectorizer, error) {
	if len(docs) == 0 {
		return nil, errors.New("cannot fit a vectorizer on zero documents")
	}
	an := newAnalyzer(opts)
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range an.terms(doc) {
			tf[term]++
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term, n := range df {
		if opts.MinDF > 1 && n < opts.MinDF {
			continue
		}
		terms = append(terms, term)
	}
	if opts.MaxFeatures > 0 && len(terms) > opts.MaxFeatures {
		slices.SortFunc(terms, func(a, b string) int {
			if c := cmp.Compare(tf[b], tf[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		terms = terms[:opts.MaxFeatures]
	}
	if len(terms) == 0 {
		return nil, errors.New("fitted vocabulary is empty")
	}
	slices.Sort(terms)

	n := float64(len(docs))
	vocab := make(map[string]int32, len(terms))
	idf := make([]float64, len(terms))
	for col, term := range terms {
		vocab[term] = int32(col)
		idf[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	if opts.Norm == "" {
		opts.Norm = NormL2
	}
	if opts.MinTokenLength <= 0 {
		opts.MinTokenLength = DefaultMinTokenLength
	}
	return New(Model{Vocabulary: vocab, IDF: idf, Options: opts})
}
