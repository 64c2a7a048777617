package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/heartnote/authcore/clock"
)

const defaultShards = 64

type memoryEntry struct {
	value     int64
	expiresAt int64 // unix ms, 0 = no expiry
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// MemoryStore is an in-process [Store]. Keys are spread over a fixed number of
// shards; each operation locks exactly one shard for the length of the map
// update, so increments on the same key are serialized.
type MemoryStore struct {
	clock  clock.Clock
	shards []memoryShard
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithShards sets the shard count. Values below one are ignored.
func WithShards(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shards = make([]memoryShard, n)
		}
	}
}

// NewMemoryStore returns an empty MemoryStore reading time from clk.
func NewMemoryStore(clk clock.Clock, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		clock:  clock.OrSystem(clk),
		shards: make([]memoryShard, defaultShards),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]memoryEntry)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	return &s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Increment implements [Store].
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	sh := s.shard(key)
	now := s.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok || expired(e.expiresAt, now) {
		e = memoryEntry{value: 0, expiresAt: expiryFor(now, ttl)}
	}
	e.value++
	sh.entries[key] = e
	return e.value, nil
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, key string) (int64, bool, error) {
	sh := s.shard(key)
	now := s.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok || expired(e.expiresAt, now) {
		return 0, false, nil
	}
	return e.value, true, nil
}

// Reset implements [Store].
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	sh := s.shard(key)

	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// SetWithTTL implements [Store].
func (s *MemoryStore) SetWithTTL(_ context.Context, key string, value int64, ttl time.Duration) error {
	sh := s.shard(key)
	now := s.clock.Now()

	sh.mu.Lock()
	sh.entries[key] = memoryEntry{value: value, expiresAt: expiryFor(now, ttl)}
	sh.mu.Unlock()
	return nil
}

// GetIfLive implements [Store].
func (s *MemoryStore) GetIfLive(_ context.Context, key string) (int64, bool, error) {
	sh := s.shard(key)
	now := s.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		return 0, false, nil
	}
	if expired(e.expiresAt, now) {
		delete(sh.entries, key)
		return 0, false, nil
	}
	return e.value, true, nil
}

// Sweep drops every expired entry and returns how many were removed. It is
// never called automatically.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, e := range sh.entries {
			if expired(e.expiresAt, now) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
