// Package apikey provides SHA-256-based API key validation. Raw keys are
// generated with crypto/rand, hashed before storage, and validated by
// comparing the hash of the presented key with the stored hash. Lookups are
// deduplicated with singleflight and optionally cached in Redis for a short
// TTL; revocation invalidates the cache entry.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farescout/farescout/pkg/redis"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix = "apikey:"
	cacheTTL       = time.Minute
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// KeyInfo holds metadata about a validated API key.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validator validates API keys against a Store. A nil cache client disables
// lookup caching; concurrent validations of the same key are collapsed into
// one store query either way.
type Validator struct {
	store  Store
	cache  *redis.Client
	group  singleflight.Group
	logger *slog.Logger
}

func NewValidator(store Store, cache *redis.Client) *Validator {
	return &Validator{
		store:  store,
		cache:  cache,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

// Validate checks a raw API key. Returns KeyInfo on success, or
// ErrInvalidKey / ErrExpiredKey on failure.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	hash := HashKey(rawKey)

	if info := v.cachedInfo(ctx, hash); info != nil {
		return checkExpiry(info)
	}

	val, err, _ := v.group.Do(hash, func() (interface{}, error) {
		info, err := v.store.LookupByHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		v.cacheInfo(ctx, hash, info)
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return checkExpiry(val.(*KeyInfo))
}

// CreateKey generates a new API key, stores its hash, and returns the raw
// key. The raw key is returned only once and cannot be retrieved again.
func (v *Validator) CreateKey(ctx context.Context, name string, rateLimit int, expiresAt *time.Time) (string, error) {
	rawKey := generateRawKey()
	info := KeyInfo{
		ID:        uuid.NewString(),
		Name:      name,
		RateLimit: rateLimit,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	if err := v.store.Insert(ctx, info, HashKey(rawKey)); err != nil {
		return "", fmt.Errorf("creating api key: %w", err)
	}
	v.logger.Info("api key created", "name", name, "rate_limit", rateLimit)
	return rawKey, nil
}

// RevokeKey deactivates an API key and drops it from the lookup cache.
func (v *Validator) RevokeKey(ctx context.Context, rawKey string) error {
	hash := HashKey(rawKey)
	revoked, err := v.store.DeactivateByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if !revoked {
		return ErrInvalidKey
	}
	if v.cache != nil {
		if err := v.cache.Del(ctx, cacheKeyPrefix+hash); err != nil {
			v.logger.Error("cache invalidation failed", "error", err)
		}
	}
	v.logger.Info("api key revoked")
	return nil
}

// ListKeys returns all active API keys (without the raw key or hash).
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	return v.store.ListActive(ctx)
}

func (v *Validator) cachedInfo(ctx context.Context, hash string) *KeyInfo {
	if v.cache == nil {
		return nil
	}
	data, err := v.cache.Get(ctx, cacheKeyPrefix+hash)
	if err != nil {
		if !redis.IsNilError(err) {
			v.logger.Error("cache get failed", "error", err)
		}
		return nil
	}
	var info KeyInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		v.logger.Error("cache unmarshal failed", "error", err)
		return nil
	}
	return &info
}

func (v *Validator) cacheInfo(ctx context.Context, hash string, info *KeyInfo) {
	if v.cache == nil {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, cacheKeyPrefix+hash, data, cacheTTL); err != nil {
		v.logger.Error("cache set failed", "error", err)
	}
}

func checkExpiry(info *KeyInfo) (*KeyInfo, error) {
	if info.ExpiresAt != nil && info.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredKey
	}
	return info, nil
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// generateRawKey returns a cryptographically random 32-byte hex-encoded
// string suitable for use as an API key.
func generateRawKey() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
