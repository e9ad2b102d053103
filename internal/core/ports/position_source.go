package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
)

// PositionSource is the device position contract.
//
// Current is best-effort: a failure maps to a PositionUnavailableError and
// callers proceed without coordinates. Watch delivers samples at
// sensor-native cadence; the broadcast scheduler decides which ones to send.
type PositionSource interface {
	// Current returns the latest position fix.
	Current(ctx context.Context) (kernel.LocationSample, error)

	// Watch opens a continuous sample stream. The stream ends when ctx is
	// cancelled or the source fails; the returned error channel carries at
	// most one terminal error. Restart policy is the caller's concern.
	Watch(ctx context.Context) (<-chan kernel.LocationSample, <-chan error, error)
}
