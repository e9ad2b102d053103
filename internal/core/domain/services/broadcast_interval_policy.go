package services

import "time"

// Broadcast cadence bands. Faster movement means a shorter interval; an
// active delivery always beats the idle cadence.
const (
	IntervalFast     = 3 * time.Second
	IntervalBrisk    = 4 * time.Second
	IntervalModerate = 5 * time.Second
	IntervalSlow     = 10 * time.Second
	IntervalIdle     = 5 * time.Minute
)

// Speed band boundaries in km/h, exclusive lower bounds.
const (
	speedFastKmh     = 50
	speedBriskKmh    = 20
	speedModerateKmh = 5
)

// BroadcastIntervalPolicy computes how often position samples should be
// published, trading telemetry freshness against transport and battery cost.
//
// During an active delivery the interval shrinks with speed; when the driver
// is merely online the flat idle cadence applies regardless of movement.
//
// Example usage:
//
//	policy := NewBroadcastIntervalPolicy()
//	interval := policy.Interval(60, true) // 3s while moving fast on a job
type BroadcastIntervalPolicy struct{}

// NewBroadcastIntervalPolicy creates a new BroadcastIntervalPolicy instance.
func NewBroadcastIntervalPolicy() BroadcastIntervalPolicy {
	return BroadcastIntervalPolicy{}
}

// Interval returns the minimum gap between published samples for the given
// ground speed and delivery context.
func (BroadcastIntervalPolicy) Interval(speedKmh float64, hasActiveDelivery bool) time.Duration {
	if !hasActiveDelivery {
		return IntervalIdle
	}

	switch {
	case speedKmh > speedFastKmh:
		return IntervalFast
	case speedKmh > speedBriskKmh:
		return IntervalBrisk
	case speedKmh > speedModerateKmh:
		return IntervalModerate
	default:
		return IntervalSlow
	}
}
