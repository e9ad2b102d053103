package offers

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrDeclineOfferCommandIsNotConstructed = errors.New(
	"DeclineOfferCommand must be created via NewDeclineOfferCommand constructor",
)

// DeclineOfferCommand expresses the driver's refusal of the offered delivery.
// Declining always clears the offer locally, whatever the remote release
// outcome, so a stale offer can never linger on the device.
type DeclineOfferCommand struct {
	deliveryID kernel.UUID

	guard guard.ConstructorGuard
}

// NewDeclineOfferCommand creates a command to decline the offer for the given
// delivery.
func NewDeclineOfferCommand(deliveryID kernel.UUID) (DeclineOfferCommand, error) {
	if err := deliveryID.Validate(); err != nil {
		return DeclineOfferCommand{}, err
	}

	return DeclineOfferCommand{
		deliveryID: deliveryID,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

// DeliveryID returns the delivery whose offer is being declined.
func (c *DeclineOfferCommand) DeliveryID() kernel.UUID {
	return c.deliveryID
}

// Validate ensures the command was created through the constructor.
func (c *DeclineOfferCommand) Validate() error {
	return c.guard.Validate(
		ErrDeclineOfferCommandIsNotConstructed,
	)
}
