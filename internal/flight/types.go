// Package flight defines the domain types shared by the store, the ranking
// engine, and the HTTP API: flights, their price observations, and the
// request-scoped candidates produced by a filtered fetch.
package flight

import (
	"strings"
	"time"
)

// Flight is a searchable flight listing. Identity is immutable once created;
// the active flag and the descriptive fields may change over its lifetime.
type Flight struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Airline     string    `json:"airline"`
	DepartureAt time.Time `json:"departure_at"`
	Equipment   string    `json:"equipment"`
	CabinClass  string    `json:"cabin_class"`
	Notes       string    `json:"notes,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// PriceObservation is one sampled fare for a flight. Observations are
// append-only: never mutated, only removed by an administrative purge.
type PriceObservation struct {
	ID         string    `json:"id"`
	FlightID   string    `json:"flight_id"`
	Amount     float64   `json:"amount"`
	CapturedAt time.Time `json:"captured_at"`
	Source     string    `json:"source"`
}

// PriceStats holds the aggregates derived from a flight's observations at
// query time. Latest comes from the observation with the maximum capture
// timestamp, never from row order.
type PriceStats struct {
	Latest        float64 `json:"latest"`
	Count         int     `json:"count"`
	Average       float64 `json:"average"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	VarianceRatio float64 `json:"variance_ratio"`
}

// ComputePriceStats derives PriceStats from a flight's observations. The
// variance-to-mean ratio uses population variance and is 0 when the mean is 0.
func ComputePriceStats(obs []PriceObservation) PriceStats {
	if len(obs) == 0 {
		return PriceStats{}
	}
	stats := PriceStats{
		Count:  len(obs),
		Min:    obs[0].Amount,
		Max:    obs[0].Amount,
		Latest: obs[0].Amount,
	}
	latestAt := obs[0].CapturedAt
	var sum float64
	for _, o := range obs {
		sum += o.Amount
		if o.Amount < stats.Min {
			stats.Min = o.Amount
		}
		if o.Amount > stats.Max {
			stats.Max = o.Amount
		}
		if o.CapturedAt.After(latestAt) {
			latestAt = o.CapturedAt
			stats.Latest = o.Amount
		}
	}
	stats.Average = sum / float64(len(obs))

	var variance float64
	for _, o := range obs {
		d := o.Amount - stats.Average
		variance += d * d
	}
	variance /= float64(len(obs))
	if stats.Average != 0 {
		stats.VarianceRatio = variance / stats.Average
	}
	return stats
}

// Candidate pairs a flight with its derived price stats for the duration of
// one ranking request. Candidates are never persisted.
type Candidate struct {
	Flight Flight     `json:"flight"`
	Prices PriceStats `json:"prices"`
}

// HasObservations reports whether any price was ever recorded for the
// candidate's flight.
func (c Candidate) HasObservations() bool {
	return c.Prices.Count > 0
}

// DocumentText is the text the ranking engine scores for this candidate:
// airline, route codes, and the descriptive fields joined by single spaces.
func (c Candidate) DocumentText() string {
	parts := make([]string, 0, 6)
	for _, s := range []string{
		c.Flight.Airline,
		c.Flight.Origin,
		c.Flight.Destination,
		c.Flight.Equipment,
		c.Flight.CabinClass,
		c.Flight.Notes,
	} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ScoredCandidate is a candidate annotated with the scores produced by the
// engine. Lexical and vector scores are the raw BM25 and cosine values, the
// fused score lies in [0,1], and the composite score is an unbounded
// additive scalar.
type ScoredCandidate struct {
	Candidate
	LexicalScore   float64 `json:"lexical_score"`
	VectorScore    float64 `json:"vector_score"`
	FusedScore     float64 `json:"fused_score"`
	CompositeScore float64 `json:"composite_score"`
}
