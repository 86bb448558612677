package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketAllowsUpToLimit(t *testing.T) {
	b := NewBucket(time.Minute)
	defer b.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow("client-1", 3), "request %d within limit", i+1)
	}
	assert.False(t, b.Allow("client-1", 3), "limit exhausted")
	assert.True(t, b.Allow("client-2", 3), "keys are limited independently")
}

func TestBucketReset(t *testing.T) {
	b := NewBucket(time.Minute)
	defer b.Close()

	for i := 0; i < 2; i++ {
		b.Allow("client-1", 2)
	}
	assert.False(t, b.Allow("client-1", 2))

	b.Reset("client-1")
	assert.True(t, b.Allow("client-1", 2))
}

func TestWindowLimiterWithoutRedisUsesBucket(t *testing.T) {
	w := NewWindowLimiter(nil, time.Minute)
	defer w.Close()

	ctx := t.Context()
	assert.True(t, w.Allow(ctx, "client-1", 1))
	assert.False(t, w.Allow(ctx, "client-1", 1))
}

func TestWindowLimiterZeroLimitIsUnlimited(t *testing.T) {
	w := NewWindowLimiter(nil, time.Second)
	defer w.Close()

	for i := 0; i < 10; i++ {
		assert.True(t, w.Allow(t.Context(), "client-1", 0))
	}
}
