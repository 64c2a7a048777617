// Package limiters holds the login lockout state machine.
//
// [LoginGuard] keeps two entries per normalized email in a [ratelimit.Store]:
//
//	lf:<email>  failure counter, fixed window
//	lb:<email>  block record, value = blockedUntil (unix ms), ttl = cooldown
//
// The counter is only incremented while no live block exists. Reaching the
// threshold writes the block and clears the counter in one step. Blocks lift
// purely by time.
//
// # What this package must NOT do
//
//   - Verify credentials or talk to the credential store.
//   - Hold a lock across anything but rate limit store calls.
//   - Import the root package or internal/flows.
package limiters
