// Package flow implements the delivery flow orchestrator: the top-level
// application service behind the driver-facing API. It owns the in-memory
// active driver and active delivery, sequences status progression through the
// transition table, and coordinates the broadcast scheduler, the lease table
// and the offer coordinator around each lifecycle step.
package flow
