// Package ratelimit provides the key -> counter/expiry store that backs the
// login lockout.
//
// # Semantics
//
// Every [Store] operation is atomic per key. Entries carry an absolute expiry
// computed from an injected [clock.Clock]; staleness is resolved lazily when a
// key is touched, never by a background goroutine. Absent and expired keys
// read as (0, false).
//
// # Backends
//
//   - [MemoryStore]: sharded map, one mutex per shard, xxhash shard selection.
//     Never returns an error.
//   - [RedisStore]: {v, e} hashes updated by Lua scripts in one round trip.
//     Transport failures wrap [ErrUnavailable].
//
// # What this package must NOT do
//
//   - Decide lockout policy (thresholds and cooldowns live in internal/limiters).
//   - Import authcore or any internal package.
package ratelimit
