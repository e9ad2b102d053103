package delivery

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// Status represents the lifecycle state of a delivery.
// It implements a state machine with defined transitions to ensure
// deliveries follow the correct round-trip workflow.
//
// State transitions:
//
//	Unassigned ──> Assigned ──> HeadingToPickup ──> AtPickup ──> Collected
//	                   │                               ▲                │
//	                   └───────────────────────────────┘                ▼
//	                        (early arrival shortcut)        HeadingToDropoff
//	                                                                    │
//	                                                                    ▼
//	                                              AtDropoff ──> Delivered
//
// Cancelled and Failed are absorbing states reachable from any non-terminal
// state. Delivered, Cancelled and Failed are terminal.
//
// Offered sits outside the driver-facing chain: it marks a delivery addressed
// to a driver and pending accept/decline. The store's conditional claim moves
// Offered to Assigned (accept) or back to Unassigned (decline).
type Status int

const (
	// Unknown represents an invalid or undefined status.
	// This value (0) helps catch uninitialized Status values.
	Unknown Status = iota

	// Unassigned is the initial status: no driver holds the delivery.
	Unassigned

	// Offered means the delivery is addressed to a specific driver and is
	// pending accept, decline or expiry.
	Offered

	// Assigned means exactly one driver has claimed the delivery.
	Assigned

	// HeadingToPickup means the driver is en route to the pickup point.
	HeadingToPickup

	// AtPickup means the driver has arrived at the pickup point.
	AtPickup

	// Collected means the driver holds the goods.
	Collected

	// HeadingToDropoff means the driver is en route to the dropoff point.
	HeadingToDropoff

	// AtDropoff means the driver has arrived at the dropoff point.
	AtDropoff

	// Delivered is the successful terminal status.
	Delivered

	// Cancelled is a terminal status reachable from any non-terminal state.
	Cancelled

	// Failed is a terminal status reachable from any non-terminal state.
	Failed
)

// getStatusStrings returns a map of Status values to their string representations.
func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:          "Unknown",
		Unassigned:       "Unassigned",
		Offered:          "Offered",
		Assigned:         "Assigned",
		HeadingToPickup:  "HeadingToPickup",
		AtPickup:         "AtPickup",
		Collected:        "Collected",
		HeadingToDropoff: "HeadingToDropoff",
		AtDropoff:        "AtDropoff",
		Delivered:        "Delivered",
		Cancelled:        "Cancelled",
		Failed:           "Failed",
	}
}

// String returns the human-readable name of the status.
// It implements fmt.Stringer and is safe to call on any Status value,
// including invalid ones, for which it returns "Unknown".
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "Unknown"
}

// StatusFromString parses a status name produced by String.
// Returns an error for unrecognized names and for "Unknown".
func StatusFromString(name string) (Status, error) {
	for status, str := range getStatusStrings() {
		if str == name && status != Unknown {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status",
		fmt.Errorf("%q is not a valid status name", name))
}

// Validate checks if the Status value is valid.
// Unknown (0) and values outside the declared constants are invalid.
func (s Status) Validate() error {
	if _, ok := getStatusStrings()[s]; !ok || s == Unknown {
		return errs.NewValueIsInvalidErrorWithCause("status is invalid",
			fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// IsTerminal reports whether the status is an absorbing end state.
// Terminal statuses are Delivered, Cancelled and Failed.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Cancelled || s == Failed
}

// next returns the single successor in the linear progression, or Unknown
// when the status has no linear successor.
func (s Status) next() Status {
	switch s {
	case Unassigned:
		return Assigned
	case Offered:
		return Assigned
	case Assigned:
		return HeadingToPickup
	case HeadingToPickup:
		return AtPickup
	case AtPickup:
		return Collected
	case Collected:
		return HeadingToDropoff
	case HeadingToDropoff:
		return AtDropoff
	case AtDropoff:
		return Delivered
	default:
		return Unknown
	}
}

// CanTransition reports whether moving from s to next is allowed.
//
// Rules:
//   - Only the single successor in the linear chain is allowed (no skipping),
//     with one extra edge: Assigned -> AtPickup, covering arrival detected
//     before the heading update is acknowledged.
//   - Cancelled and Failed are reachable from any non-terminal state.
//   - Offered additionally allows Unassigned (decline releases the offer).
//   - Terminal states allow nothing.
func (s Status) CanTransition(next Status) bool {
	if s.Validate() != nil || next.Validate() != nil {
		return false
	}

	if s.IsTerminal() {
		return false
	}

	if next == Cancelled || next == Failed {
		return true
	}

	if s == Assigned && next == AtPickup {
		return true
	}

	if s == Offered && next == Unassigned {
		return true
	}

	return s.next() == next
}

// Transition returns next if the transition is allowed, or a
// StatusTransitionError leaving the current state untouched otherwise.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return Unknown, errs.NewStatusTransitionError(s.String(), next.String())
	}
	return next, nil
}
