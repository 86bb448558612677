package flight

import (
	"testing"
	"time"

	apperrors "github.com/farescout/farescout/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name      string
		in        FilterInput
		wantField string
	}{
		{
			name: "full valid set",
			in: FilterInput{
				Origin:    "dxb",
				Airline:   "Emirates",
				FreeText:  "business class",
				PriceMin:  "100",
				PriceMax:  "2000",
				DateStart: "2026-01-15",
				DateEnd:   "2026-01-20",
			},
		},
		{
			name: "empty input is valid",
			in:   FilterInput{},
		},
		{
			name:      "bad origin code",
			in:        FilterInput{Origin: "DUBAI"},
			wantField: "origin",
		},
		{
			name:      "numeric destination",
			in:        FilterInput{Destination: "1X2"},
			wantField: "destination",
		},
		{
			name:      "non-numeric price",
			in:        FilterInput{PriceMin: "cheap"},
			wantField: "price_min",
		},
		{
			name:      "negative price",
			in:        FilterInput{PriceMax: "-5"},
			wantField: "price_max",
		},
		{
			name:      "crossed price range",
			in:        FilterInput{PriceMin: "500", PriceMax: "100"},
			wantField: "price_min",
		},
		{
			name:      "malformed date",
			in:        FilterInput{DateStart: "15/01/2026"},
			wantField: "date_start",
		},
		{
			name:      "crossed date range",
			in:        FilterInput{DateStart: "2026-02-01", DateEnd: "2026-01-01"},
			wantField: "date_start",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilters(tt.in)
			if tt.wantField != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
				assert.Equal(t, tt.wantField, apperrors.FieldOf(err))
				return
			}
			require.NoError(t, err)
			if tt.in.Origin != "" {
				assert.Equal(t, "DXB", f.Origin)
			}
		})
	}
}

func TestParseFiltersDateBounds(t *testing.T) {
	f, err := ParseFilters(FilterInput{DateStart: "2026-01-15", DateEnd: "2026-01-15"})
	require.NoError(t, err)
	require.NotNil(t, f.DateStart)
	require.NotNil(t, f.DateEnd)

	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), *f.DateStart)
	assert.Equal(t, time.Date(2026, 1, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC), *f.DateEnd)

	// A single-day window covers the whole UTC day.
	tests := []struct {
		name      string
		departure time.Time
		want      bool
	}{
		{"noon inside the day", time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), true},
		{"midnight start of day", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"minute before the day", time.Date(2026, 1, 14, 23, 59, 0, 0, time.UTC), false},
		{"second after the day", time.Date(2026, 1, 16, 0, 0, 1, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fl := Flight{Origin: "DXB", Destination: "LHR", Active: true, DepartureAt: tt.departure}
			assert.Equal(t, tt.want, f.Matches(fl))
		})
	}
}

func TestFiltersMatches(t *testing.T) {
	base := Flight{
		ID:          "f-1",
		Origin:      "DXB",
		Destination: "LHR",
		Airline:     "Emirates",
		Equipment:   "A380",
		CabinClass:  "business",
		Notes:       "lie-flat seats",
		Active:      true,
		DepartureAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	t.Run("inactive flights never match", func(t *testing.T) {
		inactive := base
		inactive.Active = false
		assert.False(t, Filters{}.Matches(inactive))
	})

	t.Run("route match is case-insensitive", func(t *testing.T) {
		assert.True(t, Filters{Origin: "dxb"}.Matches(base))
		assert.False(t, Filters{Origin: "SIN"}.Matches(base))
	})

	t.Run("airline exact match", func(t *testing.T) {
		assert.True(t, Filters{Airline: "emirates"}.Matches(base))
		assert.False(t, Filters{Airline: "Emirate"}.Matches(base))
	})

	t.Run("free text matches any field as substring", func(t *testing.T) {
		assert.True(t, Filters{FreeText: "a380"}.Matches(base))
		assert.True(t, Filters{FreeText: "lie-flat"}.Matches(base))
		assert.True(t, Filters{FreeText: "emir"}.Matches(base))
		assert.False(t, Filters{FreeText: "economy"}.Matches(base))
	})
}

func TestPriceBoundsMatch(t *testing.T) {
	min := 100.0
	max := 500.0

	t.Run("no bounds passes everything", func(t *testing.T) {
		assert.True(t, Filters{}.PriceBoundsMatch(PriceStats{}))
	})

	t.Run("no observations fails any explicit bound", func(t *testing.T) {
		assert.False(t, Filters{PriceMin: &min}.PriceBoundsMatch(PriceStats{}))
		assert.False(t, Filters{PriceMax: &max}.PriceBoundsMatch(PriceStats{}))
	})

	t.Run("latest amount drives the comparison", func(t *testing.T) {
		stats := PriceStats{Count: 3, Latest: 250}
		assert.True(t, Filters{PriceMin: &min, PriceMax: &max}.PriceBoundsMatch(stats))

		stats.Latest = 99.99
		assert.False(t, Filters{PriceMin: &min}.PriceBoundsMatch(stats))

		stats.Latest = 500.01
		assert.False(t, Filters{PriceMax: &max}.PriceBoundsMatch(stats))
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		assert.True(t, Filters{PriceMin: &min}.PriceBoundsMatch(PriceStats{Count: 1, Latest: 100}))
		assert.True(t, Filters{PriceMax: &max}.PriceBoundsMatch(PriceStats{Count: 1, Latest: 500}))
	})
}

func TestQueryText(t *testing.T) {
	t.Run("free text wins", func(t *testing.T) {
		f := Filters{FreeText: "emirates lhr", Origin: "DXB"}
		assert.Equal(t, "emirates lhr", f.QueryText())
	})

	t.Run("structured filters concatenated", func(t *testing.T) {
		f := Filters{Origin: "DXB", Destination: "LHR", Airline: "Emirates"}
		assert.Equal(t, "DXB LHR Emirates", f.QueryText())
	})

	t.Run("empty filters yield empty query", func(t *testing.T) {
		assert.Equal(t, "", Filters{}.QueryText())
	})
}
