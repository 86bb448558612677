package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/farescout/farescout/internal/flight"
	apperrors "github.com/farescout/farescout/pkg/errors"
	"github.com/farescout/farescout/pkg/postgres"
	"github.com/lib/pq"
)

// Postgres implements Store on PostgreSQL.
//
// It requires the following tables:
//
//	CREATE TABLE flights (
//	    id           TEXT PRIMARY KEY,
//	    origin       TEXT NOT NULL,
//	    destination  TEXT NOT NULL,
//	    airline      TEXT NOT NULL,
//	    departure_at TIMESTAMPTZ NOT NULL,
//	    equipment    TEXT NOT NULL DEFAULT '',
//	    cabin_class  TEXT NOT NULL DEFAULT '',
//	    notes        TEXT NOT NULL DEFAULT '',
//	    active       BOOLEAN NOT NULL DEFAULT true,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE price_observations (
//	    id          TEXT PRIMARY KEY,
//	    flight_id   TEXT NOT NULL REFERENCES flights(id) ON DELETE CASCADE,
//	    amount      DOUBLE PRECISION NOT NULL,
//	    captured_at TIMESTAMPTZ NOT NULL,
//	    source      TEXT NOT NULL DEFAULT ''
//	);
//
//	CREATE INDEX idx_observations_flight ON price_observations (flight_id, captured_at DESC);
//
// Price aggregates are computed in Go from the fetched observation rows, so
// both backends share one code path for the latest/variance derivations.
type Postgres struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgres(db *postgres.Client) *Postgres {
	return &Postgres{
		db:     db,
		logger: slog.Default().With("component", "flight-store"),
	}
}

// EnsureSchema creates the tables and indexes if they do not exist. It is
// invoked by the operator CLI, not by the server.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS flights (
			id           TEXT PRIMARY KEY,
			origin       TEXT NOT NULL,
			destination  TEXT NOT NULL,
			airline      TEXT NOT NULL,
			departure_at TIMESTAMPTZ NOT NULL,
			equipment    TEXT NOT NULL DEFAULT '',
			cabin_class  TEXT NOT NULL DEFAULT '',
			notes        TEXT NOT NULL DEFAULT '',
			active       BOOLEAN NOT NULL DEFAULT true,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS price_observations (
			id          TEXT PRIMARY KEY,
			flight_id   TEXT NOT NULL REFERENCES flights(id) ON DELETE CASCADE,
			amount      DOUBLE PRECISION NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL,
			source      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_flight ON price_observations (flight_id, captured_at DESC)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id         TEXT PRIMARY KEY,
			key_hash   TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			rate_limit INTEGER NOT NULL DEFAULT 0,
			is_active  BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ
		)`,
	}
	// One transaction so a failed statement leaves no partial schema.
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensuring schema: %w", err)
			}
		}
		return nil
	})
}

func (p *Postgres) CreateFlight(ctx context.Context, f flight.Flight) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.DB.ExecContext(ctx,
		`INSERT INTO flights (id, origin, destination, airline, departure_at, equipment, cabin_class, notes, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.Origin, f.Destination, f.Airline, f.DepartureAt, f.Equipment, f.CabinClass, f.Notes, f.Active, f.CreatedAt,
	)
	if isPQError(err, "23505") {
		return fmt.Errorf("flight %s: %w", f.ID, apperrors.ErrFlightExists)
	}
	if err != nil {
		return fmt.Errorf("creating flight: %w", err)
	}
	return nil
}

func (p *Postgres) GetFlight(ctx context.Context, id string) (flight.Flight, error) {
	var f flight.Flight
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT id, origin, destination, airline, departure_at, equipment, cabin_class, notes, active, created_at
		 FROM flights WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.Origin, &f.Destination, &f.Airline, &f.DepartureAt, &f.Equipment, &f.CabinClass, &f.Notes, &f.Active, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return flight.Flight{}, fmt.Errorf("flight %s: %w", id, apperrors.ErrFlightNotFound)
	}
	if err != nil {
		return flight.Flight{}, fmt.Errorf("querying flight: %w", err)
	}
	return f, nil
}

func (p *Postgres) UpdateFlight(ctx context.Context, f flight.Flight) error {
	result, err := p.db.DB.ExecContext(ctx,
		`UPDATE flights
		 SET origin = $2, destination = $3, airline = $4, departure_at = $5,
		     equipment = $6, cabin_class = $7, notes = $8, active = $9
		 WHERE id = $1`,
		f.ID, f.Origin, f.Destination, f.Airline, f.DepartureAt, f.Equipment, f.CabinClass, f.Notes, f.Active,
	)
	if err != nil {
		return fmt.Errorf("updating flight: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("flight %s: %w", f.ID, apperrors.ErrFlightNotFound)
	}
	return nil
}

func (p *Postgres) DeactivateFlight(ctx context.Context, id string) error {
	result, err := p.db.DB.ExecContext(ctx,
		`UPDATE flights SET active = false WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("deactivating flight: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("flight %s: %w", id, apperrors.ErrFlightNotFound)
	}
	return nil
}

func (p *Postgres) ListFlights(ctx context.Context, activeOnly bool) ([]flight.Flight, error) {
	query := `SELECT id, origin, destination, airline, departure_at, equipment, cabin_class, notes, active, created_at
	          FROM flights`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY id`

	rows, err := p.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing flights: %w", err)
	}
	defer rows.Close()
	return scanFlights(rows)
}

func (p *Postgres) AddObservation(ctx context.Context, obs flight.PriceObservation) error {
	_, err := p.db.DB.ExecContext(ctx,
		`INSERT INTO price_observations (id, flight_id, amount, captured_at, source)
		 VALUES ($1, $2, $3, $4, $5)`,
		obs.ID, obs.FlightID, obs.Amount, obs.CapturedAt, obs.Source,
	)
	if isPQError(err, "23503") {
		return fmt.Errorf("flight %s: %w", obs.FlightID, apperrors.ErrFlightNotFound)
	}
	if err != nil {
		return fmt.Errorf("adding observation: %w", err)
	}
	return nil
}

func (p *Postgres) ListObservations(ctx context.Context, flightID string, limit int) ([]flight.PriceObservation, error) {
	if _, err := p.GetFlight(ctx, flightID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT id, flight_id, amount, captured_at, source
		 FROM price_observations
		 WHERE flight_id = $1
		 ORDER BY captured_at DESC, id DESC
		 LIMIT $2`,
		flightID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing observations: %w", err)
	}
	defer rows.Close()

	var observations []flight.PriceObservation
	for rows.Next() {
		var o flight.PriceObservation
		if err := rows.Scan(&o.ID, &o.FlightID, &o.Amount, &o.CapturedAt, &o.Source); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

func (p *Postgres) PurgeObservations(ctx context.Context, before time.Time) (int64, error) {
	result, err := p.db.DB.ExecContext(ctx,
		`DELETE FROM price_observations WHERE captured_at < $1`, before,
	)
	if err != nil {
		return 0, fmt.Errorf("purging observations: %w", err)
	}
	purged, _ := result.RowsAffected()
	p.logger.Info("observations purged", "before", before, "count", purged)
	return purged, nil
}

// FetchCandidates pushes the flight-level filters into SQL, then loads the
// observations for the matched flights in one batch and derives the price
// aggregates in Go. Price bounds are applied after aggregation, so a flight
// without observations is excluded whenever either bound is set.
func (p *Postgres) FetchCandidates(ctx context.Context, filters flight.Filters) ([]flight.Candidate, error) {
	conds := []string{"active = true"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Origin != "" {
		conds = append(conds, fmt.Sprintf("UPPER(origin) = UPPER(%s)", arg(filters.Origin)))
	}
	if filters.Destination != "" {
		conds = append(conds, fmt.Sprintf("UPPER(destination) = UPPER(%s)", arg(filters.Destination)))
	}
	if filters.Airline != "" {
		conds = append(conds, fmt.Sprintf("LOWER(airline) = LOWER(%s)", arg(filters.Airline)))
	}
	if filters.DateStart != nil {
		conds = append(conds, fmt.Sprintf("departure_at >= %s", arg(*filters.DateStart)))
	}
	if filters.DateEnd != nil {
		conds = append(conds, fmt.Sprintf("departure_at <= %s", arg(*filters.DateEnd)))
	}
	if filters.FreeText != "" {
		pattern := arg("%" + escapeLike(filters.FreeText) + "%")
		fields := []string{"airline", "origin", "destination", "equipment", "cabin_class", "notes"}
		ors := make([]string, len(fields))
		for i, field := range fields {
			ors[i] = fmt.Sprintf("%s ILIKE %s", field, pattern)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	query := `SELECT id, origin, destination, airline, departure_at, equipment, cabin_class, notes, active, created_at
	          FROM flights WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY id`
	rows, err := p.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching candidate flights: %w", err)
	}
	defer rows.Close()
	flights, err := scanFlights(rows)
	if err != nil {
		return nil, err
	}
	if len(flights) == 0 {
		return []flight.Candidate{}, nil
	}

	ids := make([]string, len(flights))
	for i, f := range flights {
		ids[i] = f.ID
	}
	grouped, err := p.observationsByFlight(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]flight.Candidate, 0, len(flights))
	for _, f := range flights {
		stats := flight.ComputePriceStats(grouped[f.ID])
		if !filters.PriceBoundsMatch(stats) {
			continue
		}
		candidates = append(candidates, flight.Candidate{Flight: f, Prices: stats})
	}
	return candidates, nil
}

func (p *Postgres) observationsByFlight(ctx context.Context, flightIDs []string) (map[string][]flight.PriceObservation, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT id, flight_id, amount, captured_at, source
		 FROM price_observations
		 WHERE flight_id = ANY($1)`,
		pq.Array(flightIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching observations: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]flight.PriceObservation)
	for rows.Next() {
		var o flight.PriceObservation
		if err := rows.Scan(&o.ID, &o.FlightID, &o.Amount, &o.CapturedAt, &o.Source); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		grouped[o.FlightID] = append(grouped[o.FlightID], o)
	}
	return grouped, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.Ping(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

func scanFlights(rows *sql.Rows) ([]flight.Flight, error) {
	var flights []flight.Flight
	for rows.Next() {
		var f flight.Flight
		if err := rows.Scan(&f.ID, &f.Origin, &f.Destination, &f.Airline, &f.DepartureAt, &f.Equipment, &f.CabinClass, &f.Notes, &f.Active, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning flight: %w", err)
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func isPQError(err error, code pq.ErrorCode) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == code
}

// escapeLike escapes the LIKE metacharacters in a user-supplied substring so
// it matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
