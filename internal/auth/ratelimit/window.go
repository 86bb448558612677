package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/farescout/farescout/pkg/redis"
)

const windowKeyPrefix = "ratelimit:"

// WindowLimiter counts requests per key in a Redis fixed window, so the
// limit holds across server instances. When Redis is unavailable it falls
// back to the local token bucket rather than failing open.
type WindowLimiter struct {
	client   *redis.Client
	fallback *Bucket
	window   time.Duration
	logger   *slog.Logger
}

// NewWindowLimiter creates a limiter over the given window. client may be
// nil, in which case only the local bucket is consulted.
func NewWindowLimiter(client *redis.Client, window time.Duration) *WindowLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &WindowLimiter{
		client:   client,
		fallback: NewBucket(window),
		window:   window,
		logger:   slog.Default().With("component", "rate-limiter"),
	}
}

// Allow reports whether key has remaining capacity for this window.
func (w *WindowLimiter) Allow(ctx context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	if w.client == nil {
		return w.fallback.Allow(key, limit)
	}
	count, err := w.client.IncrWindow(ctx, windowKeyPrefix+key, w.window)
	if err != nil {
		w.logger.Error("redis rate limit failed, using local bucket", "error", err)
		return w.fallback.Allow(key, limit)
	}
	return count <= int64(limit)
}

// Close releases the fallback bucket's cleanup loop.
func (w *WindowLimiter) Close() {
	w.fallback.Close()
}
