// Package aggregator persists periodic snapshots of the aggregated analytics
// stats to PostgreSQL so dashboards can chart history across restarts.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/farescout/farescout/pkg/postgres"
)

// SnapshotStore persists analytics snapshots.
//
// It requires an `analytics_snapshots` table:
//
//	CREATE TABLE analytics_snapshots (
//	    id          BIGSERIAL PRIMARY KEY,
//	    data        JSONB NOT NULL,
//	    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type SnapshotStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// Snapshot is one persisted stats document.
type Snapshot struct {
	Data       json.RawMessage `json:"data"`
	CapturedAt time.Time       `json:"captured_at"`
}

func NewSnapshotStore(db *postgres.Client) *SnapshotStore {
	return &SnapshotStore{
		db:     db,
		logger: slog.Default().With("component", "analytics-snapshots"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS analytics_snapshots (
			id          BIGSERIAL PRIMARY KEY,
			data        JSONB NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	)
	if err != nil {
		return fmt.Errorf("ensuring snapshot schema: %w", err)
	}
	return nil
}

// Save persists one stats snapshot.
func (s *SnapshotStore) Save(ctx context.Context, stats any) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	return nil
}

// Latest loads the most recent snapshot, or nil if none exist yet.
func (s *SnapshotStore) Latest(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&snap.Data, &snap.CapturedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return &snap, nil
}

// List returns the last limit snapshots, newest first.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0, limit)
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.Data, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// RunPeriodic saves a snapshot produced by stats every interval until ctx is
// cancelled. A final snapshot is written on shutdown.
func (s *SnapshotStore) RunPeriodic(ctx context.Context, interval time.Duration, stats func() any) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("analytics snapshotting started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx, stats()); err != nil {
				s.logger.Error("snapshot save failed", "error", err)
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Save(flushCtx, stats()); err != nil {
				s.logger.Error("final snapshot save failed", "error", err)
			}
			cancel()
			return
		}
	}
}
