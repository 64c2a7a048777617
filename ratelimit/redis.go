package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/heartnote/authcore/clock"
	"github.com/redis/go-redis/v9"
)

// Entries are hashes {v: value, e: expiresAt unix ms (0 = never)}. The logical
// expiry comes from the injected clock; PEXPIRE only lets Redis reclaim keys.
const incrementScript = `
local now = tonumber(ARGV[1])
local cur = redis.call("HMGET", KEYS[1], "v", "e")
local e = tonumber(cur[2]) or 0
if cur[1] == false or (e ~= 0 and e <= now) then
  redis.call("DEL", KEYS[1])
  redis.call("HSET", KEYS[1], "v", "1", "e", ARGV[2])
  if tonumber(ARGV[3]) > 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[3])
  end
  return 1
end
return redis.call("HINCRBY", KEYS[1], "v", 1)
`

const readScript = `
local cur = redis.call("HMGET", KEYS[1], "v", "e")
if cur[1] == false then
  return {0, 0}
end
local e = tonumber(cur[2]) or 0
if e ~= 0 and e <= tonumber(ARGV[1]) then
  if ARGV[2] == "1" then
    redis.call("DEL", KEYS[1])
  end
  return {0, 0}
end
return {1, tonumber(cur[1])}
`

var (
	incrementLua = redis.NewScript(incrementScript)
	readLua      = redis.NewScript(readScript)
)

// RedisStore is a [Store] backed by Redis. Each operation is atomic on the
// server, but a caller composing several operations (the login guard's
// check, increment and block) serializes them only within its own process.
type RedisStore struct {
	redis  redis.UniversalClient
	clock  clock.Clock
	prefix string
}

// NewRedisStore creates a RedisStore. prefix namespaces every key
// (e.g. "rl:"); it may be empty.
func NewRedisStore(client redis.UniversalClient, clk clock.Clock, prefix string) *RedisStore {
	return &RedisStore{
		redis:  client,
		clock:  clock.OrSystem(clk),
		prefix: prefix,
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Increment implements [Store].
//
//	Performance: 1 Redis round trip (EVALSHA).
func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.clock.Now()
	ttlMS := int64(0)
	if ttl > 0 {
		ttlMS = ttl.Milliseconds()
	}

	count, err := incrementLua.Run(ctx, s.redis,
		[]string{s.key(key)},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(expiryFor(now, ttl), 10),
		strconv.FormatInt(ttlMS, 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	return s.read(ctx, key, false)
}

// GetIfLive implements [Store].
func (s *RedisStore) GetIfLive(ctx context.Context, key string) (int64, bool, error) {
	return s.read(ctx, key, true)
}

func (s *RedisStore) read(ctx context.Context, key string, purge bool) (int64, bool, error) {
	purgeArg := "0"
	if purge {
		purgeArg = "1"
	}

	res, err := readLua.Run(ctx, s.redis,
		[]string{s.key(key)},
		strconv.FormatInt(s.clock.Now().UnixMilli(), 10),
		purgeArg,
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 || res[0] == 0 {
		return 0, false, nil
	}
	return res[1], true, nil
}

// Reset implements [Store].
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SetWithTTL implements [Store].
//
//	Performance: 1 MULTI/EXEC round trip.
func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value int64, ttl time.Duration) error {
	k := s.key(key)
	now := s.clock.Now()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, "v", value, "e", expiryFor(now, ttl))
		if ttl > 0 {
			pipe.PExpire(ctx, k, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
