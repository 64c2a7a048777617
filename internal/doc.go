// Package internal holds the private building blocks of authcore.
//
// # Sub-packages
//
//   - audit: async event dispatch and sinks (channel, JSON, zap, Kafka)
//   - flows: login, register, refresh, validate and logout orchestration
//   - limiters: the per-email login lockout state machine
//   - metrics: lock-free counters and the validate latency histogram
//   - settings: daemon configuration (godotenv + viper)
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API except through
//     aliases in the root package.
package internal
