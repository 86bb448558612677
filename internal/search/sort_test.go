package search

import (
	"testing"
	"time"

	"github.com/farescout/farescout/internal/flight"
	"github.com/stretchr/testify/assert"
)

func scoredItem(id string, fused float64, latest float64, count int, departure time.Time) flight.ScoredCandidate {
	return flight.ScoredCandidate{
		Candidate: flight.Candidate{
			Flight: flight.Flight{ID: id, DepartureAt: departure},
			Prices: flight.PriceStats{Latest: latest, Count: count},
		},
		FusedScore: fused,
	}
}

func idsOf(items []flight.ScoredCandidate) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.Flight.ID
	}
	return ids
}

func TestApplySortRelevanceBreaksTiesByLatestAscending(t *testing.T) {
	dep := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []flight.ScoredCandidate{
		scoredItem("fl-cheap", 0.8, 120, 3, dep),
		scoredItem("fl-top", 0.9, 500, 3, dep),
		scoredItem("fl-dear", 0.8, 340, 3, dep),
	}

	applySort(items, SortRelevance, ModeHybrid)

	assert.Equal(t, []string{"fl-top", "fl-cheap", "fl-dear"}, idsOf(items))
}

func TestApplySortRelevanceFullTieFallsBackToID(t *testing.T) {
	dep := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []flight.ScoredCandidate{
		scoredItem("fl-b", 0.5, 200, 1, dep),
		scoredItem("fl-a", 0.5, 200, 1, dep),
	}

	applySort(items, SortRelevance, ModeHybrid)

	assert.Equal(t, []string{"fl-a", "fl-b"}, idsOf(items))
}

func TestApplySortRelevanceCompositeModeUsesCompositeScore(t *testing.T) {
	dep := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	low := scoredItem("fl-low", 0.99, 100, 1, dep)
	low.CompositeScore = 2
	high := scoredItem("fl-high", 0.01, 100, 1, dep)
	high.CompositeScore = 10.5
	items := []flight.ScoredCandidate{low, high}

	applySort(items, SortRelevance, ModeComposite)

	assert.Equal(t, []string{"fl-high", "fl-low"}, idsOf(items))
}

func TestApplySortPriceMissingObservationsTrail(t *testing.T) {
	dep := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	build := func() []flight.ScoredCandidate {
		return []flight.ScoredCandidate{
			scoredItem("fl-mid", 0, 350, 2, dep),
			scoredItem("fl-none", 0, 0, 0, dep),
			scoredItem("fl-low", 0, 120, 2, dep),
			scoredItem("fl-high", 0, 900, 2, dep),
		}
	}

	asc := build()
	applySort(asc, SortPriceAsc, ModeComposite)
	assert.Equal(t, []string{"fl-low", "fl-mid", "fl-high", "fl-none"}, idsOf(asc))

	desc := build()
	applySort(desc, SortPriceDesc, ModeComposite)
	assert.Equal(t, []string{"fl-high", "fl-mid", "fl-low", "fl-none"}, idsOf(desc))
}

func TestApplySortPriceEqualKeysKeepSourceOrder(t *testing.T) {
	dep := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []flight.ScoredCandidate{
		scoredItem("fl-first", 0, 250, 1, dep),
		scoredItem("fl-second", 0, 250, 1, dep),
	}

	applySort(items, SortPriceAsc, ModeComposite)

	assert.Equal(t, []string{"fl-first", "fl-second"}, idsOf(items))
}

func TestApplySortByDepartureDate(t *testing.T) {
	early := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	build := func() []flight.ScoredCandidate {
		return []flight.ScoredCandidate{
			scoredItem("fl-mid", 0, 0, 0, mid),
			scoredItem("fl-late", 0, 0, 0, late),
			scoredItem("fl-early", 0, 0, 0, early),
		}
	}

	asc := build()
	applySort(asc, SortDateAsc, ModeComposite)
	assert.Equal(t, []string{"fl-early", "fl-mid", "fl-late"}, idsOf(asc))

	desc := build()
	applySort(desc, SortDateDesc, ModeComposite)
	assert.Equal(t, []string{"fl-late", "fl-mid", "fl-early"}, idsOf(desc))
}

func TestParseSortStrategy(t *testing.T) {
	for name, want := range map[string]SortStrategy{
		"":           SortRelevance,
		"relevance":  SortRelevance,
		"price_asc":  SortPriceAsc,
		"price_desc": SortPriceDesc,
		"date_asc":   SortDateAsc,
		"date_desc":  SortDateDesc,
	} {
		got, err := ParseSortStrategy(name)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseSortStrategy("cheapest")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for name, want := range map[string]Mode{
		"":          ModeAuto,
		"auto":      ModeAuto,
		"hybrid":    ModeHybrid,
		"composite": ModeComposite,
	} {
		got, err := ParseMode(name)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("lexical")
	assert.Error(t, err)
}
