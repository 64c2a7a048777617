// Package middleware exposes the HTTP guard that protects routes with an
// authcore access token.
//
// [Guard] reads the Authorization header, calls Service.Validate, and injects
// the resulting principal into the request context ([PrincipalFromContext]).
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Service calls. It does NOT
// implement authentication logic itself; every decision is delegated to
// Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Talk to the credential or rate limit stores.
//   - Make authorization decisions beyond pass/reject from Validate.
package middleware
