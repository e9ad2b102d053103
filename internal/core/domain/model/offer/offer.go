// Package offer contains the ephemeral Offer value object: a delivery observed
// in Offered status addressed to this driver, pending accept, decline, expiry
// or a superseding offer. Offers are never persisted as a distinct entity and
// at most one live Offer exists per driver at any time.
package offer

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// DefaultTTL is the window within which an offer can be accepted or declined.
const DefaultTTL = 5 * time.Minute

var (
	// ErrOfferIsNotConstructed is returned when using an improperly initialized Offer.
	ErrOfferIsNotConstructed = errors.New("Offer must be created via NewOffer constructor")
	// ErrDeliveryIsNotOffered is returned when the underlying delivery is not in Offered status.
	ErrDeliveryIsNotOffered = errors.New("delivery is not in Offered status")
)

// Offer is a delivery tentatively addressed to one driver.
// It holds a reference to the observed delivery plus the timing window; the
// expiry timer itself lives in the coordinator, not here.
type Offer struct {
	delivery  *delivery.Delivery
	offeredAt time.Time
	expiresAt time.Time

	isConstructed bool
}

// NewOffer creates an Offer for a delivery observed in Offered status.
// ttl must be positive; expiry is offeredAt+ttl.
func NewOffer(d *delivery.Delivery, offeredAt time.Time, ttl time.Duration) (*Offer, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Status() != delivery.Offered {
		return nil, ErrDeliveryIsNotOffered
	}
	if offeredAt.IsZero() {
		return nil, errs.NewValueIsRequiredError("offeredAt")
	}
	if ttl <= 0 {
		return nil, errs.NewValueIsInvalidError("ttl")
	}

	return &Offer{
		delivery:      d,
		offeredAt:     offeredAt,
		expiresAt:     offeredAt.Add(ttl),
		isConstructed: true,
	}, nil
}

// Validate ensures the Offer was properly constructed.
func (o *Offer) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOfferIsNotConstructed
	}
	return nil
}

// Delivery returns the observed delivery this offer refers to.
func (o *Offer) Delivery() *delivery.Delivery {
	return o.delivery
}

// DeliveryID returns the identifier of the offered delivery.
func (o *Offer) DeliveryID() kernel.UUID {
	return o.delivery.ID()
}

// OfferedAt returns the time the offer was observed.
func (o *Offer) OfferedAt() time.Time {
	return o.offeredAt
}

// ExpiresAt returns the time after which the offer is no longer actionable.
func (o *Offer) ExpiresAt() time.Time {
	return o.expiresAt
}

// IsExpired reports whether the offer window has closed at the given time.
func (o *Offer) IsExpired(now time.Time) bool {
	return !now.Before(o.expiresAt)
}
