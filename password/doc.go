// Package password hashes and verifies user passwords.
//
// New hashes use bcrypt by default (cost 12). Argon2id is available as the
// primary algorithm and is always accepted on verification, so stored hashes
// of either kind keep working when the configured algorithm changes.
//
// Inputs are raw bytes: no Unicode normalization, 8 to 72 bytes.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other package of this module.
//   - Log plaintext passwords.
package password
