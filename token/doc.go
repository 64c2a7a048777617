// Package token signs and parses the compact HS256 tokens handed to clients.
//
// A [Codec] is immutable after [NewCodec] and safe for unbounded concurrent
// use. It never performs I/O.
//
// # Claims
//
// Access and refresh tokens share one [Claims] shape and are told apart by the
// token_type claim. [Codec.Parse] verifies algorithm, signature, issuer,
// audience and expiry but deliberately does not check the type; callers compare
// [Claims.Type] with what they expect.
//
// # Errors
//
// Parse failures are classified into [ErrMalformed], [ErrInvalidSignature],
// [ErrExpired], [ErrWrongIssuerOrAudience] and [ErrNotYetValid]; the original
// golang-jwt error stays in the chain.
package token
