// Package vector implements the TF-IDF vector-space scorer of the ranking
// engine. Candidates and the query are embedded as sparse term-count vectors
// weighted by smoothed inverse document frequency, then compared by cosine
// similarity. This is classic lexical vectorisation, not a learned embedding.
package vector

import (
	"math"

	"github.com/farescout/farescout/internal/search/corpus"
)

// normEpsilon floors the vector norms so empty documents divide cleanly and
// never produce NaN.
const normEpsilon = 1e-9

// ScoreAll computes the cosine similarity between the query vector and every
// candidate document vector. The returned slice aligns with c.Docs by index.
func ScoreAll(c *corpus.Corpus) []float64 {
	scores := make([]float64, len(c.Docs))
	if len(c.Vocabulary) == 0 {
		return scores
	}

	// The corpus vocabulary already appends query-only terms, so it is the
	// full term universe both vectors are aligned to.
	idf := make([]float64, len(c.Vocabulary))
	for i, term := range c.Vocabulary {
		idf[i] = SmoothedIDF(c.DocCount, c.DocFreq[term])
	}

	queryVec := vectorize(c.Query, c.TermIndex, idf)
	for i, doc := range c.Docs {
		scores[i] = Cosine(queryVec, vectorize(doc, c.TermIndex, idf))
	}
	return scores
}

// SmoothedIDF is ln((N+1)/(df+1)) + 1. It is strictly positive for every
// df >= 0, so unseen terms still carry weight instead of dividing by zero.
func SmoothedIDF(docCount, docFreq int) float64 {
	return math.Log(float64(docCount+1)/float64(docFreq+1)) + 1
}

// vectorize embeds a token sequence into the term universe: each occurrence
// adds the term's idf weight, yielding rawCount x idf per dimension.
func vectorize(tokens []string, termIndex map[string]int, idf []float64) []float64 {
	vec := make([]float64, len(idf))
	for _, term := range tokens {
		if idx, ok := termIndex[term]; ok {
			vec[idx] += idf[idx]
		}
	}
	return vec
}

// Cosine returns the cosine similarity of two equal-length vectors, flooring
// each norm at normEpsilon.
func Cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	normA = math.Sqrt(normA)
	if normA < normEpsilon {
		normA = normEpsilon
	}
	normB = math.Sqrt(normB)
	if normB < normEpsilon {
		normB = normEpsilon
	}
	return dot / (normA * normB)
}
