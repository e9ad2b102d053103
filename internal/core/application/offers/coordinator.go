package offers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/application/broadcast"
	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/offer"
	"dispatch/internal/core/ports"
)

var (
	// ErrNoActiveOffer is returned when accepting or declining and no live
	// offer for that delivery exists, including the case where it just expired.
	ErrNoActiveOffer = errors.New("no active offer for delivery")

	// ErrAcceptInProgress is returned when a second accept arrives while the
	// first claim for the same offer is still in flight.
	ErrAcceptInProgress = errors.New("accept already in progress")
)

// expiryTimer is the cancellable handle of a scheduled offer expiry.
type expiryTimer interface {
	Stop() bool
}

// Coordinator owns the driver's single live offer slot. A new inbound offer
// supersedes the previous one, expiry clears the slot locally without any
// network traffic, and Accept runs the conditional claim with the store as
// the sole arbiter between competing drivers.
//
// The slot is nulled before its timer is cancelled on every teardown path, so
// a timer that fires mid-teardown finds no offer and does nothing.
type Coordinator struct {
	driverID   kernel.UUID
	deliveries ports.DeliveryRepository
	leases     *broadcast.LeaseManager
	notifier   ports.Notifier
	logger     *slog.Logger
	ttl        time.Duration
	now        func() time.Time
	startTimer func(d time.Duration, f func()) expiryTimer

	mu        sync.Mutex
	current   *offer.Offer
	timer     expiryTimer
	accepting bool
}

// NewCoordinator creates an offer coordinator for one driver.
func NewCoordinator(
	driverID kernel.UUID,
	deliveries ports.DeliveryRepository,
	leases *broadcast.LeaseManager,
	notifier ports.Notifier,
	logger *slog.Logger,
) (*Coordinator, error) {
	if deliveries == nil {
		return nil, errors.New("deliveries repository is required")
	}
	if leases == nil {
		return nil, errors.New("lease manager is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		driverID:   driverID,
		deliveries: deliveries,
		leases:     leases,
		notifier:   notifier,
		logger:     logger.With("component", "offer_coordinator"),
		ttl:        offer.DefaultTTL,
		now:        time.Now,
		startTimer: func(d time.Duration, f func()) expiryTimer {
			return time.AfterFunc(d, f)
		},
	}, nil
}

// Run subscribes to the driver's offer topic and feeds inbound offer events
// into the coordinator until ctx is cancelled or the stream ends.
func (c *Coordinator) Run(ctx context.Context) error {
	messages, err := c.leases.Subscribe(ctx, broadcast.OffersTopic(c.driverID))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := broadcast.Decode(msg.Payload)
			if err != nil {
				c.logger.Warn("dropping undecodable offer payload", "error", err)
				continue
			}
			offerEvent, ok := event.(broadcast.OfferEvent)
			if !ok {
				c.logger.Warn("dropping non-offer event on offer topic")
				continue
			}
			c.HandleOfferEvent(offerEvent)
		}
	}
}

// HandleOfferEvent installs an inbound offer as the live one. A previous live
// offer is superseded silently. Events addressed to another driver or that
// cannot be reconstructed into a valid offered delivery are dropped.
func (c *Coordinator) HandleOfferEvent(event broadcast.OfferEvent) {
	if event.DriverID != c.driverID.String() {
		return
	}

	offered, err := broadcast.DeliveryFromOfferEvent(event)
	if err != nil {
		c.logger.Warn("dropping malformed offer event", "delivery_id", event.DeliveryID, "error", err)
		return
	}

	now := c.now()
	incoming, err := offer.NewOffer(offered, now, c.ttl)
	if err != nil {
		c.logger.Warn("dropping non-offerable delivery", "delivery_id", event.DeliveryID, "error", err)
		return
	}

	c.mu.Lock()
	if c.current != nil {
		c.logger.Info("offer superseded", "delivery_id", c.current.DeliveryID().String())
	}
	c.clearLocked()
	c.current = incoming
	deliveryID := incoming.DeliveryID()
	c.timer = c.startTimer(incoming.ExpiresAt().Sub(now), func() {
		c.expire(deliveryID)
	})
	c.mu.Unlock()

	c.logger.Info("offer received", "delivery_id", deliveryID.String())
	c.notifier.OfferReceived(deliveryID, int(c.ttl.Seconds()))
}

// Current returns the live offer, or nil when the slot is empty.
func (c *Coordinator) Current() *offer.Offer {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Accept claims the offered delivery for this driver. Exactly one driver
// across the fleet wins the claim; a lost race returns a ClaimConflictError
// and evicts the local offer. Only one accept may be in flight at a time.
func (c *Coordinator) Accept(ctx context.Context, command AcceptOfferCommand) (*delivery.Delivery, error) {
	if err := command.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.current == nil || !c.current.DeliveryID().IsEqual(command.DeliveryID()) {
		c.mu.Unlock()
		return nil, ErrNoActiveOffer
	}
	if c.current.IsExpired(c.now()) {
		c.clearLocked()
		c.mu.Unlock()
		return nil, ErrNoActiveOffer
	}
	if c.accepting {
		c.mu.Unlock()
		return nil, ErrAcceptInProgress
	}
	c.accepting = true
	c.mu.Unlock()

	claimed, err := c.deliveries.Claim(ctx, command.DeliveryID(), c.driverID)

	c.mu.Lock()
	c.accepting = false
	if err == nil || c.offerMatchesLocked(command.DeliveryID()) {
		c.clearLocked()
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Info("claim lost", "delivery_id", command.DeliveryID().String(), "error", err)
		c.notifier.Error("offer is no longer available")
		return nil, err
	}

	c.logger.Info("claim won", "delivery_id", claimed.ID().String())
	return claimed, nil
}

// Decline refuses the offered delivery. The local slot is always cleared,
// even when the remote release fails; the offer will expire server-side on
// its own.
func (c *Coordinator) Decline(ctx context.Context, command DeclineOfferCommand) error {
	if err := command.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if !c.offerMatchesLocked(command.DeliveryID()) {
		c.mu.Unlock()
		return ErrNoActiveOffer
	}
	c.clearLocked()
	c.mu.Unlock()

	if err := c.deliveries.Release(ctx, command.DeliveryID(), c.driverID); err != nil {
		c.logger.Warn("remote release failed after decline", "delivery_id", command.DeliveryID().String(), "error", err)
	}

	c.logger.Info("offer declined", "delivery_id", command.DeliveryID().String())
	return nil
}

// expire evicts the live offer when its window closes. Purely local: no
// repository call, no publish, no notification beyond the log line.
func (c *Coordinator) expire(deliveryID kernel.UUID) {
	c.mu.Lock()
	if !c.offerMatchesLocked(deliveryID) {
		c.mu.Unlock()
		return
	}
	if !c.current.IsExpired(c.now()) {
		c.mu.Unlock()
		return
	}
	c.clearLocked()
	c.mu.Unlock()

	c.logger.Info("offer expired", "delivery_id", deliveryID.String())
}

// offerMatchesLocked assumes c.mu is held.
func (c *Coordinator) offerMatchesLocked(deliveryID kernel.UUID) bool {
	return c.current != nil && c.current.DeliveryID().IsEqual(deliveryID)
}

// clearLocked empties the offer slot, nulling it before stopping the timer.
// Assumes c.mu is held.
func (c *Coordinator) clearLocked() {
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
