// Package corpus turns a filtered candidate set into the per-request term
// statistics shared by the BM25 and vector scorers: vocabulary, document
// frequencies, and average document length.
package corpus

import (
	"github.com/farescout/farescout/internal/search/tokenizer"
)

// Corpus holds the tokenised candidate documents and the statistics derived
// from them. It is built once per ranking request and read concurrently by
// the scorers, so it must not be mutated after Build returns.
type Corpus struct {
	// Docs holds one token sequence per candidate, in candidate order.
	Docs [][]string
	// Query is the tokenised query text.
	Query []string
	// Vocabulary lists terms by first appearance across candidate documents,
	// with query-only terms appended at the end.
	Vocabulary []string
	// TermIndex maps each vocabulary term to its stable position.
	TermIndex map[string]int
	// DocFreq counts the distinct candidate documents containing each term.
	// Query-only terms are absent, so lookups for them yield 0.
	DocFreq map[string]int
	// DocCount is the candidate count floored at 1 so ratios stay defined
	// for an empty set.
	DocCount int
	// AvgDocLen is the mean token count per candidate document, with the
	// denominator floored at 1.
	AvgDocLen float64
}

// Build tokenises the candidate document texts and the query text and
// derives the corpus statistics.
func Build(docTexts []string, queryText string) *Corpus {
	c := &Corpus{
		Docs:      make([][]string, len(docTexts)),
		TermIndex: make(map[string]int),
		DocFreq:   make(map[string]int),
	}

	totalTokens := 0
	for i, text := range docTexts {
		tokens := tokenizer.Tokenize(text)
		c.Docs[i] = tokens
		totalTokens += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, term := range tokens {
			if _, ok := c.TermIndex[term]; !ok {
				c.TermIndex[term] = len(c.Vocabulary)
				c.Vocabulary = append(c.Vocabulary, term)
			}
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				c.DocFreq[term]++
			}
		}
	}

	c.Query = tokenizer.Tokenize(queryText)
	for _, term := range c.Query {
		if _, ok := c.TermIndex[term]; !ok {
			c.TermIndex[term] = len(c.Vocabulary)
			c.Vocabulary = append(c.Vocabulary, term)
		}
	}

	c.DocCount = len(docTexts)
	if c.DocCount < 1 {
		c.DocCount = 1
	}
	docs := len(docTexts)
	if docs < 1 {
		docs = 1
	}
	c.AvgDocLen = float64(totalTokens) / float64(docs)

	return c
}

// TermCounts returns the raw term frequency map for one token sequence.
func TermCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, term := range tokens {
		counts[term]++
	}
	return counts
}
