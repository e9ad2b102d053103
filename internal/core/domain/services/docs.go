// Package services provides domain services that implement business rules
// which don't naturally belong to a single aggregate root.
//
// The package includes:
//   - BroadcastIntervalPolicy: computes the adaptive location broadcast
//     interval from speed and delivery context
//
// Domain services are pure and stateless; they hold no infrastructure
// dependencies and are safe for concurrent use.
package services
