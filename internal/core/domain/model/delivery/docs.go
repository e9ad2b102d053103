// Package delivery contains the Delivery aggregate and its status state machine.
//
// A Delivery moves through a strict linear lifecycle from Unassigned to
// Delivered, with Cancelled and Failed reachable as absorbing states from any
// non-terminal state. The transition table is a pure function: an invalid
// request is rejected with a StatusTransitionError and the aggregate is left
// untouched.
//
// The aggregate is owned by the remote store; this process keeps a cached
// copy and only persists terminal statuses. Intermediate progress is
// broadcast-only by design.
package delivery
