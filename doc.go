// Package authcore is the credential authentication core of the heartnote
// backend: email and password login guarded by a fixed-window lockout, and
// stateless HS256 access and refresh tokens.
//
// Service methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Service], [Builder], [Config]
// and value types (LoginResult, Principal, MetricsSnapshot). Users live
// behind the [CredentialStore] capability; adapters are in store/memory and
// store/postgres. Lockout state lives in a ratelimit.Store, in process or in
// Redis. Flow orchestration, the lockout state machine, audit dispatch and
// counters live under internal/.
//
// # What this package must NOT do
//
//   - Hold a lock across a CredentialStore call.
//   - Mutate lockout state for an attempt whose context was cancelled.
//   - Record raw error text, passwords or tokens in audit events.
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Lockout
//
// Five failed logins for one normalized email within fifteen minutes block
// that email for fifteen minutes. While blocked, every attempt is rejected
// with [*AccountLockedError] before the credential store is consulted, and
// nothing is counted. Unknown emails count exactly like wrong passwords.
package authcore
