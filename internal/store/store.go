// Package store persists flights and their price observations and serves the
// filtered candidate sets the ranking engine scores. Two backends implement
// the same contract: PostgreSQL for deployments and an in-memory store for
// tests and single-node development.
package store

import (
	"context"
	"time"

	"github.com/farescout/farescout/internal/flight"
)

// Store is the persistence contract shared by both backends.
//
// FetchCandidates applies the full filter contract (active flag,
// case-insensitive route and airline equality, departure date window, free
// text, and price bounds checked against the derived aggregates) and
// returns candidates ordered by flight ID so downstream stable sorts are
// deterministic.
type Store interface {
	CreateFlight(ctx context.Context, f flight.Flight) error
	GetFlight(ctx context.Context, id string) (flight.Flight, error)
	UpdateFlight(ctx context.Context, f flight.Flight) error
	DeactivateFlight(ctx context.Context, id string) error
	ListFlights(ctx context.Context, activeOnly bool) ([]flight.Flight, error)

	AddObservation(ctx context.Context, obs flight.PriceObservation) error
	ListObservations(ctx context.Context, flightID string, limit int) ([]flight.PriceObservation, error)
	PurgeObservations(ctx context.Context, before time.Time) (int64, error)

	FetchCandidates(ctx context.Context, filters flight.Filters) ([]flight.Candidate, error)

	Ping(ctx context.Context) error
	Close() error
}
