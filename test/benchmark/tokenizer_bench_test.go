// Package benchmark contains Go benchmarks for the tokenizer, the scoring
// primitives, and the end-to-end ranking engine, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/farescout/farescout/internal/search/corpus"
	"github.com/farescout/farescout/internal/search/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "Emirates DXB LHR A380 business lie-flat seats",
	"medium": `Emirates operates the DXB to LHR route with A380 equipment in a
        four-class layout. Business cabin fares include lounge access, chauffeur
        transfers, and lie-flat seats with direct aisle access. The red-eye
        departure arrives at Heathrow early morning, making same-day meetings
        possible for connecting passengers from Australia and Southeast Asia.`,
	"long": strings.Repeat(`Fare observations on long-haul trunk routes move with
        seasonal demand, fuel costs, and competitor capacity. Carriers adjust
        published fares several times a day across booking classes, and the
        observed amounts drift in a band around the route's base price. Business
        and first cabin fares are stickier than economy, while promotional saver
        fares appear and vanish within hours. Equipment swaps from B777 to A380
        change seat inventory enough to shift the whole fare ladder. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := tokenizer.Tokenize(text)
				_ = tokens
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := tokenizer.Tokenize(text)
			_ = tokens
		}
	})
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "emirates business lie-flat a380 dxb lhr fare "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := tokenizer.Tokenize(text)
				_ = tokens
			}
		})
	}
}

// BenchmarkCorpusBuild measures the cost of deriving the per-request term
// statistics from candidate documents of a typical flight-record shape.
func BenchmarkCorpusBuild(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, numDocs := range sizes {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			texts := buildDocTexts(numDocs)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				stats := corpus.Build(texts, "emirates business lie-flat")
				_ = stats
			}
		})
	}
}
