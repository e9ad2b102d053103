package driver

// Activity is the derived label written to the presence read-model alongside
// each position upsert. It is a cheap, eventually-consistent summary of what
// the driver is doing, distinct from the high-frequency location broadcast.
type Activity string

const (
	// ActivityDelivering means the driver is working an active delivery.
	ActivityDelivering Activity = "delivering"
	// ActivityAvailable means the driver is online and idle.
	ActivityAvailable Activity = "available"
	// ActivityBreak means the driver is online but paused tracking.
	ActivityBreak Activity = "break"
)

// DeriveActivity computes the presence label from driver state.
func DeriveActivity(d *Driver, hasActiveDelivery bool) Activity {
	if hasActiveDelivery {
		return ActivityDelivering
	}
	if d.IsOnline() && !d.IsTracking() {
		return ActivityBreak
	}
	return ActivityAvailable
}
