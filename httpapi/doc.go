// Package httpapi exposes the authentication core over JSON/HTTP using chi.
//
// Error responses share one shape, {"code": ..., "message": ...}. A locked
// account answers 423 with Retry-After and minutesRemaining. Per-IP request
// throttling ([Throttle]) is separate from the per-email login lockout and
// answers 429.
package httpapi
