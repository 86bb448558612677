// Package composite implements the rule-based relevance score used by the
// structured ranking mode. The score is an explainable additive blend of
// price-history presence, price stability, departure recency, and fare
// competitiveness; no text signal is involved.
package composite

import (
	"time"

	"github.com/farescout/farescout/internal/flight"
)

const (
	observationBonus     = 5.0
	tightStabilityBonus  = 3.0
	mediumStabilityBonus = 2.0
	baseStabilityBonus   = 1.0
	futureBonus          = 2.0

	tightRatio  = 0.1
	mediumRatio = 0.2

	// Fares below this reference gain a competitiveness bonus; fares above
	// it are penalised, without clamping.
	referenceFare       = 1000.0
	competitivenessRate = 0.001
)

// Score computes the composite score of one candidate at the given
// processing time. The stability and competitiveness terms require an
// observed price and are skipped for candidates with no history.
func Score(c flight.Candidate, now time.Time) float64 {
	var score float64
	if c.HasObservations() {
		score += observationBonus
		switch {
		case c.Prices.VarianceRatio < tightRatio:
			score += tightStabilityBonus
		case c.Prices.VarianceRatio < mediumRatio:
			score += mediumStabilityBonus
		default:
			score += baseStabilityBonus
		}
		score += (referenceFare - c.Prices.Latest) * competitivenessRate
	}
	if !c.Flight.DepartureAt.Before(now) {
		score += futureBonus
	}
	return score
}

// ScoreAll computes the composite score for every candidate using a single
// processing time so one request ranks against a consistent clock.
func ScoreAll(candidates []flight.Candidate, now time.Time) []float64 {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = Score(c, now)
	}
	return scores
}
