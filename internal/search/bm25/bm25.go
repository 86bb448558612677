// Package bm25 implements the probabilistic lexical scorer of the ranking
// engine. Scores grow with query-term frequency but saturate via k1 and are
// normalised for document length via b.
package bm25

import (
	"math"

	"github.com/farescout/farescout/internal/search/corpus"
)

const (
	k1 = 1.5
	b  = 0.75
)

// ScoreAll computes the BM25 score of every candidate document against the
// corpus query. The returned slice aligns with c.Docs by index. A document
// sharing no term with the query scores exactly 0.
func ScoreAll(c *corpus.Corpus) []float64 {
	scores := make([]float64, len(c.Docs))
	if len(c.Query) == 0 {
		return scores
	}

	queryTerms := uniqueTerms(c.Query)
	idf := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		idf[term] = IDF(c.DocCount, c.DocFreq[term])
	}

	for i, doc := range c.Docs {
		counts := corpus.TermCounts(doc)
		docLen := float64(len(doc))
		var score float64
		for _, term := range queryTerms {
			tf := float64(counts[term])
			if tf == 0 {
				continue
			}
			score += idf[term] * tfSaturation(tf, docLen, c.AvgDocLen)
		}
		scores[i] = score
	}
	return scores
}

// IDF is ln(1 + (N - df + 0.5)/(df + 0.5)). The +0.5 smoothing keeps it
// finite and positive for every df in [0, N].
func IDF(docCount, docFreq int) float64 {
	numerator := float64(docCount) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func tfSaturation(tf, docLen, avgDocLen float64) float64 {
	if avgDocLen == 0 {
		return 0
	}
	lengthRatio := docLen / avgDocLen
	return (tf * (k1 + 1)) / (tf + k1*(1-b+b*lengthRatio))
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, term := range tokens {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		unique = append(unique, term)
	}
	return unique
}
