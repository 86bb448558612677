package search

import (
	"math"
	"sort"

	"github.com/farescout/farescout/internal/flight"
)

// relevanceOf returns the score a candidate is ranked by under the resolved
// mode: the fused score for hybrid, the composite score otherwise.
func relevanceOf(sc flight.ScoredCandidate, mode Mode) float64 {
	if mode == ModeHybrid {
		return sc.FusedScore
	}
	return sc.CompositeScore
}

// sortKeyPrice returns the latest observed fare, or an infinity that pushes
// flights without observations to the end of either price ordering.
func sortKeyPrice(sc flight.ScoredCandidate, ascending bool) float64 {
	if !sc.HasObservations() {
		if ascending {
			return math.Inf(1)
		}
		return math.Inf(-1)
	}
	return sc.Prices.Latest
}

// applySort orders items in place according to the requested strategy.
// Relevance sorts descending by score with ascending latest fare breaking
// ties; the remaining strategies are stable single-key sorts, so candidates
// that compare equal keep the source order.
func applySort(items []flight.ScoredCandidate, strategy SortStrategy, mode Mode) {
	switch strategy {
	case SortPriceAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return sortKeyPrice(items[i], true) < sortKeyPrice(items[j], true)
		})
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return sortKeyPrice(items[i], false) > sortKeyPrice(items[j], false)
		})
	case SortDateAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Flight.DepartureAt.Before(items[j].Flight.DepartureAt)
		})
	case SortDateDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[j].Flight.DepartureAt.Before(items[i].Flight.DepartureAt)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			si, sj := relevanceOf(items[i], mode), relevanceOf(items[j], mode)
			if si != sj {
				return si > sj
			}
			li, lj := items[i].Prices.Latest, items[j].Prices.Latest
			if li != lj {
				return li < lj
			}
			return items[i].Flight.ID < items[j].Flight.ID
		})
	}
}
