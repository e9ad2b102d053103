package flow

import (
	"errors"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/pkg/guard"
)

var ErrAdvanceDeliveryCommandIsNotConstructed = errors.New(
	"AdvanceDeliveryCommand must be created via NewAdvanceDeliveryCommand constructor",
)

// AdvanceDeliveryCommand requests moving the active delivery to the given
// next status. The transition table decides whether the move is legal; a
// rejected move leaves everything untouched.
//
// Example:
//
//	cmd, err := NewAdvanceDeliveryCommand(delivery.AtPickup)
//	if err != nil {
//	    return err
//	}
//	err = orchestrator.Advance(ctx, cmd)
type AdvanceDeliveryCommand struct {
	next delivery.Status

	guard guard.ConstructorGuard
}

// NewAdvanceDeliveryCommand creates a command to advance the active delivery.
func NewAdvanceDeliveryCommand(next delivery.Status) (AdvanceDeliveryCommand, error) {
	if err := next.Validate(); err != nil {
		return AdvanceDeliveryCommand{}, err
	}

	return AdvanceDeliveryCommand{
		next:  next,
		guard: guard.NewConstructorGuard(),
	}, nil
}

// Next returns the requested next status.
func (c *AdvanceDeliveryCommand) Next() delivery.Status {
	return c.next
}

// Validate ensures the command was created through the constructor.
func (c *AdvanceDeliveryCommand) Validate() error {
	return c.guard.Validate(
		ErrAdvanceDeliveryCommandIsNotConstructed,
	)
}
