// Package errs provides standardized error types for the dispatch client.
// It implements a consistent pattern for error creation, formatting, and unwrapping
// that is used throughout the application.
//
// The package covers two groups of errors:
//   - Generic validation errors used by domain constructors:
//     ValueIsRequiredError, ValueIsInvalidError, ValueIsOutOfRangeError,
//     ObjectNotFoundError
//   - Operational errors of the dispatch flow:
//     StatusTransitionError (invalid next state, local and recoverable),
//     ClaimConflictError (offer claimed elsewhere, expected under contention),
//     TransportError (publish/subscribe failure, absorbed by the circuit breaker),
//     PositionUnavailableError (best-effort only, never blocks a transition),
//     PersistenceError (failed terminal write, must be surfaced and retried)
//
// Each error type follows a consistent pattern:
//   - A sentinel error variable (e.g., ErrClaimConflict)
//   - A struct type with fields for error details
//   - Constructor functions with and without cause
//   - Error() method for formatting the error message
//   - Unwrap() method for error wrapping/unwrapping support
//
// Callers classify errors with errors.Is against the sentinels rather than
// matching on concrete types.
package errs
