package ports

import (
	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
)

// Notifier is the fire-and-forget notification/UI sink. Implementations
// must never block and their failures must never roll back a state
// transition; the orchestrator calls these after the transition is done.
type Notifier interface {
	// OfferReceived announces a new offer pending accept/decline.
	OfferReceived(deliveryID kernel.UUID, expiresInSeconds int)

	// StatusChanged announces a completed status transition.
	StatusChanged(deliveryID kernel.UUID, status delivery.Status)

	// Error announces a user-visible failure, such as a claim conflict.
	Error(message string)
}
