// Package ratelimit enforces per-key request limits. The primary limiter is
// a Redis fixed window shared across server instances; a local token bucket
// serves as the standalone limiter and as the fallback when Redis is
// unreachable.
package ratelimit

import (
	"sync"
	"time"
)

// entry tracks the token-bucket state for a single key.
type entry struct {
	tokens    float64
	lastCheck time.Time
}

// Bucket implements an in-memory token-bucket rate limiter. Tokens refill
// continuously at a rate of limit per window.
type Bucket struct {
	mu      sync.Mutex
	entries map[string]*entry
	window  time.Duration
	stop    chan struct{}
}

// NewBucket creates a token-bucket limiter with the given refill window.
func NewBucket(window time.Duration) *Bucket {
	b := &Bucket{
		entries: make(map[string]*entry),
		window:  window,
		stop:    make(chan struct{}),
	}
	go b.cleanup()
	return b
}

// Allow consumes one token for key and reports whether capacity remained.
func (b *Bucket) Allow(key string, limit int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	e, exists := b.entries[key]
	if !exists {
		b.entries[key] = &entry{
			tokens:    float64(limit - 1),
			lastCheck: now,
		}
		return true
	}

	elapsed := now.Sub(e.lastCheck)
	e.lastCheck = now

	rate := float64(limit) / b.window.Seconds()
	e.tokens += elapsed.Seconds() * rate
	if e.tokens > float64(limit) {
		e.tokens = float64(limit)
	}

	if e.tokens < 1 {
		return false
	}

	e.tokens--
	return true
}

// Reset clears the rate-limit state for a specific key.
func (b *Bucket) Reset(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
}

// Close stops the background cleanup loop.
func (b *Bucket) Close() {
	close(b.stop)
}

// cleanup periodically removes stale entries so idle keys do not accumulate.
func (b *Bucket) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			cutoff := time.Now().Add(-2 * b.window)
			for key, e := range b.entries {
				if e.lastCheck.Before(cutoff) {
					delete(b.entries, key)
				}
			}
			b.mu.Unlock()
		case <-b.stop:
			return
		}
	}
}
