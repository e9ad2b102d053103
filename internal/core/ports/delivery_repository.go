// Package ports defines the contracts between the dispatch core and its
// external collaborators: the remote store, the realtime transport, the
// position source, the presence read-model and the notification sink.
// These interfaces enable dependency inversion and testability.
package ports

import (
	"context"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
)

// DeliveryRepository defines the persistence contract for delivery aggregates
// on the remote store.
//
// Claim and Release are the only operations requiring cross-process mutual
// exclusion; both are single-statement conditional updates (compare-and-swap
// on status+driverId) arbitrated by the store, not by any client-side lock.
type DeliveryRepository interface {
	// Add persists a new delivery aggregate.
	Add(ctx context.Context, aggregate *delivery.Delivery) error

	// Get retrieves a delivery aggregate by its unique identifier.
	Get(ctx context.Context, id kernel.UUID) (*delivery.Delivery, error)

	// Claim atomically assigns an offered delivery to the driver:
	// "set status = Assigned where id = deliveryID and driverId = driverID
	// and status = Offered". Exactly one caller across the fleet succeeds.
	// When the conditional update affects no row the offer was claimed
	// elsewhere or expired and a ClaimConflictError is returned.
	// On success the refreshed aggregate is returned.
	Claim(ctx context.Context, deliveryID kernel.UUID, driverID kernel.UUID) (*delivery.Delivery, error)

	// Release atomically returns an offered delivery to the unassigned pool:
	// "set status = Unassigned, driverId = null where id = deliveryID and
	// driverId = driverID and status = Offered". Affecting no row yields a
	// ClaimConflictError; declining callers may ignore it.
	Release(ctx context.Context, deliveryID kernel.UUID, driverID kernel.UUID) error

	// UpdateFinal persists a delivery that reached a terminal status.
	// Intermediate statuses are broadcast-only and never written through
	// this method. A failed write surfaces as a PersistenceError.
	UpdateFinal(ctx context.Context, aggregate *delivery.Delivery) error

	// GetAllActiveForDriver retrieves this driver's non-terminal deliveries,
	// used to reconstruct in-progress state after a restart.
	GetAllActiveForDriver(ctx context.Context, driverID kernel.UUID) ([]*delivery.Delivery, error)
}
