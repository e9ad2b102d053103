package ports

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/kernel"
)

// CheckpointEvent names a delivery milestone whose position sample is durably
// persisted regardless of the adaptive broadcast interval.
type CheckpointEvent string

const (
	// CheckpointPickupArrival is recorded when the driver reaches the pickup point.
	CheckpointPickupArrival CheckpointEvent = "pickup_arrival"
	// CheckpointDeliveryCompleted is recorded when the delivery finishes.
	CheckpointDeliveryCompleted CheckpointEvent = "delivery_completed"
)

// Checkpoint is one durable position record tied to a delivery milestone,
// kept for audit and dispute resolution.
type Checkpoint struct {
	ID         kernel.UUID
	DeliveryID kernel.UUID
	DriverID   kernel.UUID
	Event      CheckpointEvent
	Sample     kernel.LocationSample
	RecordedAt time.Time
}

// CheckpointRepository defines the durable append contract for critical-event
// position history. Appends are exactly one row per event.
type CheckpointRepository interface {
	// Append durably records one checkpoint. A failed write surfaces as a
	// PersistenceError and must be retried by the caller.
	Append(ctx context.Context, checkpoint Checkpoint) error

	// GetAllForDelivery retrieves the checkpoints recorded for a delivery
	// in append order.
	GetAllForDelivery(ctx context.Context, deliveryID kernel.UUID) ([]Checkpoint, error)
}
