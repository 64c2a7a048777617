// Package flows contains the orchestration for every Service operation.
//
// Each Run function (RunLogin, RunRefresh, RunValidate, RunRegister,
// RunLogout) accepts a typed dependency struct of plain functions and returns
// results without side-effects beyond those dependencies. The root package
// wires the deps once at Build time.
//
// Login ordering is fixed: block check, credential lookup, password check,
// active check, then lockout bookkeeping. Lockout state is touched only after
// the credential store call has resolved, and never when ctx was cancelled.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through dependency functions.
package flows
