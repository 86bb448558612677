package apikey

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/farescout/farescout/pkg/postgres"
)

// Store persists API keys, indexed by the SHA-256 hash of the raw key.
// LookupByHash returns ErrInvalidKey for unknown or inactive hashes.
type Store interface {
	LookupByHash(ctx context.Context, hash string) (*KeyInfo, error)
	Insert(ctx context.Context, info KeyInfo, hash string) error
	DeactivateByHash(ctx context.Context, hash string) (bool, error)
	ListActive(ctx context.Context) ([]KeyInfo, error)
}

// PostgresStore keeps API keys in the api_keys table.
type PostgresStore struct {
	db *postgres.Client
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LookupByHash(ctx context.Context, hash string) (*KeyInfo, error) {
	var info KeyInfo
	var expiresAt sql.NullTime
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, name, rate_limit, is_active, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = $1 AND is_active = true`,
		hash,
	).Scan(&info.ID, &info.Name, &info.RateLimit, &info.IsActive, &info.CreatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if expiresAt.Valid {
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

func (s *PostgresStore) Insert(ctx context.Context, info KeyInfo, hash string) error {
	var expiry sql.NullTime
	if info.ExpiresAt != nil {
		expiry = sql.NullTime{Time: *info.ExpiresAt, Valid: true}
	}
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO api_keys (id, key_hash, name, rate_limit, is_active, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		info.ID, hash, info.Name, info.RateLimit, info.IsActive, info.CreatedAt, expiry,
	)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeactivateByHash(ctx context.Context, hash string) (bool, error) {
	result, err := s.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = false WHERE key_hash = $1`, hash,
	)
	if err != nil {
		return false, fmt.Errorf("deactivating api key: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]KeyInfo, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, rate_limit, is_active, created_at, expires_at
		 FROM api_keys WHERE is_active = true ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var k KeyInfo
		var expiresAt sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &k.RateLimit, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// MemoryStore keeps API keys in memory. It backs unit tests and is not used
// in server wiring.
type MemoryStore struct {
	mu     sync.RWMutex
	byHash map[string]KeyInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]KeyInfo)}
}

func (s *MemoryStore) LookupByHash(_ context.Context, hash string) (*KeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.byHash[hash]
	if !ok || !info.IsActive {
		return nil, ErrInvalidKey
	}
	copied := info
	return &copied, nil
}

func (s *MemoryStore) Insert(_ context.Context, info KeyInfo, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[hash]; ok {
		return fmt.Errorf("api key hash already exists")
	}
	s.byHash[hash] = info
	return nil
}

func (s *MemoryStore) DeactivateByHash(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.byHash[hash]
	if !ok || !info.IsActive {
		return false, nil
	}
	info.IsActive = false
	s.byHash[hash] = info
	return true, nil
}

func (s *MemoryStore) ListActive(context.Context) ([]KeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]KeyInfo, 0, len(s.byHash))
	for _, info := range s.byHash {
		if info.IsActive {
			keys = append(keys, info)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}
