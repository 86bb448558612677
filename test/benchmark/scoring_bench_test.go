package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/farescout/farescout/internal/flight"
	"github.com/farescout/farescout/internal/search/bm25"
	"github.com/farescout/farescout/internal/search/composite"
	"github.com/farescout/farescout/internal/search/corpus"
	"github.com/farescout/farescout/internal/search/fusion"
	"github.com/farescout/farescout/internal/search/vector"
)

var (
	benchAirlines  = []string{"Emirates", "British Airways", "Singapore Airlines", "Qantas", "Lufthansa", "Delta", "Qatar Airways", "KLM"}
	benchRoutes    = [][2]string{{"DXB", "LHR"}, {"LHR", "JFK"}, {"SIN", "NRT"}, {"SYD", "SIN"}, {"CDG", "DXB"}, {"FRA", "ORD"}}
	benchEquipment = []string{"A380", "B777", "A350", "B787"}
	benchCabins    = []string{"economy", "premium economy", "business", "first"}
	benchNotes     = []string{
		"refundable fare with flexible changes",
		"saver fare, carry-on baggage only",
		"business fare includes lounge access and lie-flat seats",
		"seasonal fare on the summer schedule",
		"red-eye fare, arrives early morning",
	}
)

// buildDocTexts produces n candidate documents in the shape the engine scores:
// airline, route codes, equipment, cabin, and notes joined by spaces.
func buildDocTexts(n int) []string {
	texts := make([]string, n)
	for i := 0; i < n; i++ {
		route := benchRoutes[i%len(benchRoutes)]
		texts[i] = fmt.Sprintf("%s %s %s %s %s %s",
			benchAirlines[i%len(benchAirlines)],
			route[0], route[1],
			benchEquipment[i%len(benchEquipment)],
			benchCabins[i%len(benchCabins)],
			benchNotes[i%len(benchNotes)],
		)
	}
	return texts
}

// buildCandidates produces n candidates with derived price aggregates for the
// composite scorer.
func buildCandidates(n int, now time.Time) []flight.Candidate {
	candidates := make([]flight.Candidate, n)
	for i := 0; i < n; i++ {
		route := benchRoutes[i%len(benchRoutes)]
		latest := 150 + float64(i%1200)
		candidates[i] = flight.Candidate{
			Flight: flight.Flight{
				ID:          fmt.Sprintf("fl-%d", i),
				Origin:      route[0],
				Destination: route[1],
				Airline:     benchAirlines[i%len(benchAirlines)],
				DepartureAt: now.Add(time.Duration(i%90) * 24 * time.Hour),
				Active:      true,
			},
			Prices: flight.PriceStats{
				Latest:        latest,
				Count:         3,
				Average:       latest * 1.05,
				Min:           latest * 0.9,
				Max:           latest * 1.2,
				VarianceRatio: float64(i%40) / 100,
			},
		}
	}
	return candidates
}

// BenchmarkBM25Scoring measures lexical scoring across candidate-set sizes.
func BenchmarkBM25Scoring(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, numDocs := range sizes {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			stats := corpus.Build(buildDocTexts(numDocs), "emirates business lie-flat fare")
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				scores := bm25.ScoreAll(stats)
				_ = scores
			}
		})
	}
}

// BenchmarkBM25MultiTerm measures lexical scoring with an increasing number
// of query terms over a fixed candidate set.
func BenchmarkBM25MultiTerm(b *testing.B) {
	queries := map[int]string{
		1:  "emirates",
		3:  "emirates business fare",
		5:  "emirates business fare lie-flat a380",
		10: "emirates business fare lie-flat a380 lounge refundable saver red-eye seasonal",
	}
	for _, tc := range []int{1, 3, 5, 10} {
		b.Run(fmt.Sprintf("terms_%d", tc), func(b *testing.B) {
			stats := corpus.Build(buildDocTexts(1000), queries[tc])
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				scores := bm25.ScoreAll(stats)
				_ = scores
			}
		})
	}
}

// BenchmarkVectorScoring measures TF-IDF cosine scoring across candidate-set
// sizes. This is the widest scorer: every document is embedded over the full
// vocabulary.
func BenchmarkVectorScoring(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, numDocs := range sizes {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			stats := corpus.Build(buildDocTexts(numDocs), "emirates business lie-flat fare")
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				scores := vector.ScoreAll(stats)
				_ = scores
			}
		})
	}
}

// BenchmarkFuse measures normalising and blending two raw score arrays.
func BenchmarkFuse(b *testing.B) {
	sizes := []int{1000, 10000, 100000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("scores_%d", n), func(b *testing.B) {
			lexical := make([]float64, n)
			cosines := make([]float64, n)
			for i := 0; i < n; i++ {
				lexical[i] = float64(i%97) / 10
				cosines[i] = float64(i%89) / 100
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _, fused := fusion.Fuse(lexical, cosines, 0.5)
				_ = fused
			}
		})
	}
}

// BenchmarkCompositeScoring measures the rule-based scorer across candidate
// counts.
func BenchmarkCompositeScoring(b *testing.B) {
	now := time.Now().UTC()
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("candidates_%d", n), func(b *testing.B) {
			candidates := buildCandidates(n, now)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				scores := composite.ScoreAll(candidates, now)
				_ = scores
			}
		})
	}
}
