package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached.
var ErrUnavailable = errors.New("rate limit store unavailable")

// Store is a concurrent key -> int64 map with per-entry expiry.
//
// Increment creates the entry with value 1 and the given ttl when it is absent
// or expired; otherwise it adds one and keeps the existing expiry (fixed
// window). SetWithTTL overwrites value and expiry unconditionally. A ttl <= 0
// means the entry never expires.
//
// Get and GetIfLive both hide expired entries. GetIfLive additionally removes
// an expired entry it encounters.
type Store interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, bool, error)
	Reset(ctx context.Context, key string) error
	SetWithTTL(ctx context.Context, key string, value int64, ttl time.Duration) error
	GetIfLive(ctx context.Context, key string) (int64, bool, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

func expiryFor(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(ttl).UnixMilli()
}

func expired(expiresAt int64, now time.Time) bool {
	return expiresAt != 0 && expiresAt <= now.UnixMilli()
}
