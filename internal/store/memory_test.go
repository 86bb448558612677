package store

import (
	"context"
	"testing"
	"time"

	"github.com/farescout/farescout/internal/flight"
	apperrors "github.com/farescout/farescout/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFlight(t *testing.T, m *Memory, id, origin, destination, airline string, departure time.Time, active bool) {
	t.Helper()
	err := m.CreateFlight(context.Background(), flight.Flight{
		ID:          id,
		Origin:      origin,
		Destination: destination,
		Airline:     airline,
		DepartureAt: departure,
		Active:      active,
	})
	require.NoError(t, err)
}

func seedObservation(t *testing.T, m *Memory, id, flightID string, amount float64, capturedAt time.Time) {
	t.Helper()
	err := m.AddObservation(context.Background(), flight.PriceObservation{
		ID:         id,
		FlightID:   flightID,
		Amount:     amount,
		CapturedAt: capturedAt,
	})
	require.NoError(t, err)
}

func TestMemoryFlightLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	dep := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	seedFlight(t, m, "fl-1", "DXB", "LHR", "Emirates", dep, true)

	err := m.CreateFlight(ctx, flight.Flight{ID: "fl-1"})
	assert.ErrorIs(t, err, apperrors.ErrFlightExists)

	got, err := m.GetFlight(ctx, "fl-1")
	require.NoError(t, err)
	assert.Equal(t, "Emirates", got.Airline)
	assert.False(t, got.CreatedAt.IsZero())

	got.Notes = "nonstop"
	require.NoError(t, m.UpdateFlight(ctx, got))
	updated, err := m.GetFlight(ctx, "fl-1")
	require.NoError(t, err)
	assert.Equal(t, "nonstop", updated.Notes)
	assert.Equal(t, got.CreatedAt, updated.CreatedAt)

	require.NoError(t, m.DeactivateFlight(ctx, "fl-1"))
	deactivated, err := m.GetFlight(ctx, "fl-1")
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	_, err = m.GetFlight(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrFlightNotFound)
	assert.ErrorIs(t, m.UpdateFlight(ctx, flight.Flight{ID: "missing"}), apperrors.ErrFlightNotFound)
	assert.ErrorIs(t, m.DeactivateFlight(ctx, "missing"), apperrors.ErrFlightNotFound)
}

func TestMemoryListFlights(t *testing.T) {
	m := NewMemory()
	dep := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	seedFlight(t, m, "fl-b", "SYD", "MEL", "Qantas", dep, true)
	seedFlight(t, m, "fl-a", "DXB", "LHR", "Emirates", dep, true)
	seedFlight(t, m, "fl-c", "SIN", "BKK", "Singapore", dep, false)

	all, err := m.ListFlights(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "fl-a", all[0].ID, "flights are listed in ID order")

	active, err := m.ListFlights(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 2)
}

func TestMemoryObservations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	dep := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	seedFlight(t, m, "fl-1", "DXB", "LHR", "Emirates", dep, true)

	err := m.AddObservation(ctx, flight.PriceObservation{ID: "obs-x", FlightID: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrFlightNotFound)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedObservation(t, m, "obs-1", "fl-1", 450, base)
	seedObservation(t, m, "obs-2", "fl-1", 480, base.Add(48*time.Hour))
	seedObservation(t, m, "obs-3", "fl-1", 430, base.Add(24*time.Hour))

	obs, err := m.ListObservations(ctx, "fl-1", 2)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "obs-2", obs[0].ID, "newest observation first")
	assert.Equal(t, "obs-3", obs[1].ID)

	purged, err := m.PurgeObservations(ctx, base.Add(36*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)

	remaining, err := m.ListObservations(ctx, "fl-1", 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "obs-2", remaining[0].ID)
}

func TestMemoryFetchCandidatesFilterContract(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	d1 := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 9, 20, 10, 0, 0, 0, time.UTC)

	seedFlight(t, m, "fl-dxb", "DXB", "LHR", "Emirates", d1, true)
	seedFlight(t, m, "fl-syd", "SYD", "LHR", "Qantas", d2, true)
	seedFlight(t, m, "fl-off", "DXB", "LHR", "Emirates", d1, false)

	t.Run("inactive flights are never candidates", func(t *testing.T) {
		candidates, err := m.FetchCandidates(ctx, flight.Filters{})
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		for _, c := range candidates {
			assert.NotEqual(t, "fl-off", c.Flight.ID)
		}
	})

	t.Run("origin matches case-insensitively", func(t *testing.T) {
		candidates, err := m.FetchCandidates(ctx, flight.Filters{Origin: "dxb"})
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "fl-dxb", candidates[0].Flight.ID)
	})

	t.Run("departure window bounds", func(t *testing.T) {
		start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
		candidates, err := m.FetchCandidates(ctx, flight.Filters{DateStart: &start})
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "fl-syd", candidates[0].Flight.ID)
	})

	t.Run("free text matches any field", func(t *testing.T) {
		candidates, err := m.FetchCandidates(ctx, flight.Filters{FreeText: "qanta"})
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "fl-syd", candidates[0].Flight.ID)
	})
}

func TestMemoryFetchCandidatesPriceBounds(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	dep := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	seedFlight(t, m, "fl-priced", "DXB", "LHR", "Emirates", dep, true)
	seedFlight(t, m, "fl-bare", "DXB", "LHR", "Emirates", dep, true)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedObservation(t, m, "obs-1", "fl-priced", 450, base)
	seedObservation(t, m, "obs-2", "fl-priced", 520, base.Add(time.Hour))

	min := 400.0
	candidates, err := m.FetchCandidates(ctx, flight.Filters{PriceMin: &min})
	require.NoError(t, err)
	require.Len(t, candidates, 1, "flights without observations are excluded when a bound is set")
	assert.Equal(t, "fl-priced", candidates[0].Flight.ID)
	assert.Equal(t, 520.0, candidates[0].Prices.Latest, "latest comes from the max capture timestamp")
	assert.Equal(t, 2, candidates[0].Prices.Count)

	max := 500.0
	candidates, err = m.FetchCandidates(ctx, flight.Filters{PriceMax: &max})
	require.NoError(t, err)
	assert.Empty(t, candidates, "latest 520 exceeds the max bound")

	candidates, err = m.FetchCandidates(ctx, flight.Filters{})
	require.NoError(t, err)
	assert.Len(t, candidates, 2, "no bounds set admits flights without observations")
}

func TestMemoryFetchCandidatesCancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.FetchCandidates(ctx, flight.Filters{})
	assert.Error(t, err)
}
