package ports

import (
	"context"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
)

// PresenceStore is the cheap, eventually-consistent read-model updated on
// every successful scheduled send: where the driver is and what they are
// doing, distinct from the high-frequency location broadcast.
type PresenceStore interface {
	// Upsert writes the driver's current position and activity label.
	Upsert(ctx context.Context, driverID kernel.UUID, sample kernel.LocationSample, activity driver.Activity) error

	// Clear removes the driver's presence record, used when going offline.
	Clear(ctx context.Context, driverID kernel.UUID) error
}
