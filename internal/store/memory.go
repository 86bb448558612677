package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farescout/farescout/internal/flight"
	apperrors "github.com/farescout/farescout/pkg/errors"
)

// Memory is a thread-safe in-memory Store. It backs tests, the load
// generator, and single-node development runs where PostgreSQL would be
// overhead.
type Memory struct {
	mu           sync.RWMutex
	flights      map[string]flight.Flight
	observations map[string][]flight.PriceObservation
}

func NewMemory() *Memory {
	return &Memory{
		flights:      make(map[string]flight.Flight),
		observations: make(map[string][]flight.PriceObservation),
	}
}

func (m *Memory) CreateFlight(_ context.Context, f flight.Flight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flights[f.ID]; ok {
		return fmt.Errorf("flight %s: %w", f.ID, apperrors.ErrFlightExists)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	m.flights[f.ID] = f
	return nil
}

func (m *Memory) GetFlight(_ context.Context, id string) (flight.Flight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flights[id]
	if !ok {
		return flight.Flight{}, fmt.Errorf("flight %s: %w", id, apperrors.ErrFlightNotFound)
	}
	return f, nil
}

func (m *Memory) UpdateFlight(_ context.Context, f flight.Flight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.flights[f.ID]
	if !ok {
		return fmt.Errorf("flight %s: %w", f.ID, apperrors.ErrFlightNotFound)
	}
	f.CreatedAt = existing.CreatedAt
	m.flights[f.ID] = f
	return nil
}

func (m *Memory) DeactivateFlight(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[id]
	if !ok {
		return fmt.Errorf("flight %s: %w", id, apperrors.ErrFlightNotFound)
	}
	f.Active = false
	m.flights[id] = f
	return nil
}

func (m *Memory) ListFlights(_ context.Context, activeOnly bool) ([]flight.Flight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	flights := make([]flight.Flight, 0, len(m.flights))
	for _, f := range m.flights {
		if activeOnly && !f.Active {
			continue
		}
		flights = append(flights, f)
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })
	return flights, nil
}

func (m *Memory) AddObservation(_ context.Context, obs flight.PriceObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flights[obs.FlightID]; !ok {
		return fmt.Errorf("flight %s: %w", obs.FlightID, apperrors.ErrFlightNotFound)
	}
	m.observations[obs.FlightID] = append(m.observations[obs.FlightID], obs)
	return nil
}

func (m *Memory) ListObservations(_ context.Context, flightID string, limit int) ([]flight.PriceObservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.flights[flightID]; !ok {
		return nil, fmt.Errorf("flight %s: %w", flightID, apperrors.ErrFlightNotFound)
	}
	obs := make([]flight.PriceObservation, len(m.observations[flightID]))
	copy(obs, m.observations[flightID])
	sort.Slice(obs, func(i, j int) bool { return obs[i].CapturedAt.After(obs[j].CapturedAt) })
	if limit > 0 && len(obs) > limit {
		obs = obs[:limit]
	}
	return obs, nil
}

func (m *Memory) PurgeObservations(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for flightID, obs := range m.observations {
		kept := obs[:0]
		for _, o := range obs {
			if o.CapturedAt.Before(before) {
				purged++
				continue
			}
			kept = append(kept, o)
		}
		if len(kept) == 0 {
			delete(m.observations, flightID)
		} else {
			m.observations[flightID] = kept
		}
	}
	return purged, nil
}

func (m *Memory) FetchCandidates(ctx context.Context, filters flight.Filters) ([]flight.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.flights))
	for id, f := range m.flights {
		if filters.Matches(f) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	candidates := make([]flight.Candidate, 0, len(ids))
	for _, id := range ids {
		stats := flight.ComputePriceStats(m.observations[id])
		if !filters.PriceBoundsMatch(stats) {
			continue
		}
		candidates = append(candidates, flight.Candidate{Flight: m.flights[id], Prices: stats})
	}
	return candidates, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
