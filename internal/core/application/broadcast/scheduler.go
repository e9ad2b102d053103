package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// Watch restart backoff bounds.
const (
	watchBackoffBase = 1 * time.Second
	watchBackoffMax  = 30 * time.Second
)

// Broadcaster is the adaptive location broadcast scheduler. It consumes the
// position stream at sensor cadence, throttles it to the cadence computed by
// the interval policy, publishes location events for the active delivery and
// keeps the presence read-model fresh.
//
// The cutover between cadence bands is immediate: the interval is recomputed
// from scratch on every sample, so switching to an active delivery or a
// faster speed band takes effect on the very next sample.
type Broadcaster struct {
	driverID  kernel.UUID
	source    ports.PositionSource
	publisher *Publisher
	presence  ports.PresenceStore
	policy    services.BroadcastIntervalPolicy
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	activeID   *kernel.UUID
	lastSentAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBroadcaster creates a broadcast scheduler for one driver.
func NewBroadcaster(
	driverID kernel.UUID,
	source ports.PositionSource,
	publisher *Publisher,
	presence ports.PresenceStore,
	logger *slog.Logger,
) (*Broadcaster, error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if presence == nil {
		return nil, errors.New("presence is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Broadcaster{
		driverID:  driverID,
		source:    source,
		publisher: publisher,
		presence:  presence,
		policy:    services.NewBroadcastIntervalPolicy(),
		logger:    logger.With("component", "broadcaster"),
		now:       time.Now,
	}, nil
}

// Start launches the scheduling loop. Calling Start on a running broadcaster
// is a no-op.
func (b *Broadcaster) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	done := make(chan struct{})
	b.done = done
	go b.run(runCtx, done)
}

// Stop cancels the scheduling loop and waits for it to drain. Calling Stop
// on a stopped broadcaster is a no-op.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetActiveDelivery switches the broadcaster between idle and active cadence.
// Passing nil returns to the idle cadence. The switch applies on the next
// sample without waiting out the previous interval band.
func (b *Broadcaster) SetActiveDelivery(deliveryID *kernel.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.activeID = deliveryID
	b.lastSentAt = time.Time{}
}

// ActiveDelivery returns the currently tracked delivery id, or nil when idle.
func (b *Broadcaster) ActiveDelivery() *kernel.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.activeID
}

// run supervises the position stream: when the watch fails or ends it is
// reopened with a bounded exponential backoff, reset after a healthy sample.
func (b *Broadcaster) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := watchBackoffBase
	for {
		samples, watchErrs, err := b.source.Watch(ctx)
		if err != nil {
			b.logger.Warn("position watch failed to open", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

	stream:
		for {
			select {
			case <-ctx.Done():
				return
			case sample, ok := <-samples:
				if !ok {
					b.logger.Warn("position stream ended, reopening", "retry_in", backoff)
					break stream
				}
				backoff = watchBackoffBase
				b.HandleSample(ctx, sample)
			case err, ok := <-watchErrs:
				if ok && err != nil {
					b.logger.Warn("position stream failed, reopening", "error", err, "retry_in", backoff)
				}
				break stream
			}
		}

		if !sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// HandleSample applies the throttle to one sample and performs the scheduled
// send when the interval has elapsed. The send timestamp advances only when
// the publish actually went out; suppressed or failed sends leave it alone so
// the next sample retries immediately.
func (b *Broadcaster) HandleSample(ctx context.Context, sample kernel.LocationSample) {
	b.mu.Lock()
	activeID := b.activeID
	lastSentAt := b.lastSentAt
	b.mu.Unlock()

	interval := b.policy.Interval(sample.SpeedKmh(), activeID != nil)
	now := b.now()
	if !lastSentAt.IsZero() && now.Sub(lastSentAt) < interval {
		return
	}

	if activeID != nil {
		event := NewLocationEvent(*activeID, b.driverID, sample)
		if err := b.publisher.Publish(ctx, LocationTopic(*activeID), event); err != nil {
			if !errors.Is(err, ErrCircuitOpen) {
				b.logger.Warn("location publish failed", "delivery_id", activeID.String(), "error", err)
			}
			return
		}
	}

	activity := driver.ActivityAvailable
	if activeID != nil {
		activity = driver.ActivityDelivering
	}
	if err := b.presence.Upsert(ctx, b.driverID, sample, activity); err != nil {
		b.logger.Warn("presence upsert failed", "error", err)
		if activeID == nil {
			return
		}
	}

	b.mu.Lock()
	b.lastSentAt = now
	b.mu.Unlock()
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > watchBackoffMax {
		return watchBackoffMax
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
