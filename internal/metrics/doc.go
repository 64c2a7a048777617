// Package metrics provides lock-free counters and a latency histogram for the
// authentication service.
//
// Counters live in cache-line-padded uint64 slots incremented with
// sync/atomic. The validate histogram has 8 fixed buckets (<=5ms ... +Inf).
// The write path does not allocate.
//
// Export to Prometheus and OpenTelemetry lives in metrics/export and reads
// Snapshot values.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import the root package or any sibling package.
//   - Expose global registries.
package metrics
