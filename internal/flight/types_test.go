package flight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputePriceStats(t *testing.T) {
	at := func(day int) time.Time {
		return time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC)
	}

	t.Run("empty observations", func(t *testing.T) {
		stats := ComputePriceStats(nil)
		assert.Zero(t, stats.Count)
		assert.Zero(t, stats.Latest)
		assert.Zero(t, stats.VarianceRatio)
	})

	t.Run("latest follows max capture timestamp, not slice order", func(t *testing.T) {
		obs := []PriceObservation{
			{Amount: 300, CapturedAt: at(20)},
			{Amount: 100, CapturedAt: at(5)},
			{Amount: 200, CapturedAt: at(12)},
		}
		stats := ComputePriceStats(obs)
		assert.Equal(t, 300.0, stats.Latest)
		assert.Equal(t, 3, stats.Count)
		assert.Equal(t, 100.0, stats.Min)
		assert.Equal(t, 300.0, stats.Max)
		assert.InDelta(t, 200.0, stats.Average, 1e-9)
	})

	t.Run("latest last in slice", func(t *testing.T) {
		obs := []PriceObservation{
			{Amount: 100, CapturedAt: at(5)},
			{Amount: 250, CapturedAt: at(25)},
		}
		assert.Equal(t, 250.0, ComputePriceStats(obs).Latest)
	})

	t.Run("variance to mean ratio", func(t *testing.T) {
		// amounts 90,100,110: mean 100, population variance 200/3.
		obs := []PriceObservation{
			{Amount: 90, CapturedAt: at(1)},
			{Amount: 100, CapturedAt: at(2)},
			{Amount: 110, CapturedAt: at(3)},
		}
		stats := ComputePriceStats(obs)
		assert.InDelta(t, (200.0/3)/100.0, stats.VarianceRatio, 1e-9)
	})

	t.Run("single observation has zero variance", func(t *testing.T) {
		stats := ComputePriceStats([]PriceObservation{{Amount: 420, CapturedAt: at(1)}})
		assert.Equal(t, 420.0, stats.Latest)
		assert.Zero(t, stats.VarianceRatio)
	})
}

func TestDocumentText(t *testing.T) {
	c := Candidate{Flight: Flight{
		Origin:      "DXB",
		Destination: "LHR",
		Airline:     "Emirates",
		Equipment:   "A380",
		CabinClass:  "business",
	}}
	assert.Equal(t, "Emirates DXB LHR A380 business", c.DocumentText())

	sparse := Candidate{Flight: Flight{Origin: "SIN", Destination: "BKK"}}
	assert.Equal(t, "SIN BKK", sparse.DocumentText())
}
