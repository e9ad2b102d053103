package offers

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrAcceptOfferCommandIsNotConstructed = errors.New(
	"AcceptOfferCommand must be created via NewAcceptOfferCommand constructor",
)

// AcceptOfferCommand expresses the driver's intent to claim the offered
// delivery. Acceptance is conditional: it only succeeds if the offer is still
// live locally and the claim wins the remote arbitration.
//
// Example:
//
//	cmd, err := NewAcceptOfferCommand(deliveryID)
//	if err != nil {
//	    return err
//	}
//	claimed, err := coordinator.Accept(ctx, cmd)
type AcceptOfferCommand struct {
	deliveryID kernel.UUID

	guard guard.ConstructorGuard
}

// NewAcceptOfferCommand creates a command to accept the offer for the given
// delivery.
func NewAcceptOfferCommand(deliveryID kernel.UUID) (AcceptOfferCommand, error) {
	if err := deliveryID.Validate(); err != nil {
		return AcceptOfferCommand{}, err
	}

	return AcceptOfferCommand{
		deliveryID: deliveryID,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

// DeliveryID returns the delivery the driver wants to claim.
func (c *AcceptOfferCommand) DeliveryID() kernel.UUID {
	return c.deliveryID
}

// Validate ensures the command was created through the constructor.
func (c *AcceptOfferCommand) Validate() error {
	return c.guard.Validate(
		ErrAcceptOfferCommandIsNotConstructed,
	)
}
