package delivery

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

var (
	// ErrDeliveryIsNotConstructed is returned when a Delivery instance was not
	// created through NewDelivery or RestoreDelivery.
	ErrDeliveryIsNotConstructed = errors.New("Delivery must be created via NewDelivery or RestoreDelivery constructor")

	// ErrDriverIsRequired is returned when a status that requires an assigned
	// driver would be reached without one.
	ErrDriverIsRequired = errors.New("driver must be assigned for every status except Unassigned")
)

// AssignmentSource tags how a delivery reached the driver.
type AssignmentSource int

const (
	// SourceUnknown represents an invalid or undefined source.
	SourceUnknown AssignmentSource = iota

	// SourceIndividual marks a delivery offered directly to one driver.
	SourceIndividual

	// SourceFleet marks a delivery dispatched through a fleet.
	SourceFleet
)

// String returns the human-readable name of the assignment source.
func (s AssignmentSource) String() string {
	switch s {
	case SourceIndividual:
		return "Individual"
	case SourceFleet:
		return "Fleet"
	default:
		return "Unknown"
	}
}

// Validate checks if the AssignmentSource value is valid.
func (s AssignmentSource) Validate() error {
	if s != SourceIndividual && s != SourceFleet {
		return errs.NewValueIsInvalidErrorWithCause("assignmentSource",
			fmt.Errorf("%d is not a valid assignment source", s))
	}
	return nil
}

// Delivery represents a delivery job moving through its round-trip lifecycle.
// It is the aggregate root owned by the remote store; this process holds a
// cached, possibly-stale copy.
//
// Invariants:
//   - Must have a valid unique identifier and valid pickup/dropoff points
//   - Total price must not be negative
//   - Driver ID is non-nil for every status except Unassigned
//   - Status transitions follow the transition table; a rejected transition
//     leaves the aggregate untouched
type Delivery struct {
	id        kernel.UUID
	status    Status
	driverID  *kernel.UUID
	pickup    kernel.GeoPoint
	dropoff   kernel.GeoPoint
	price     float64
	source    AssignmentSource
	createdAt time.Time

	assignedAt  *time.Time
	completedAt *time.Time

	isConstructed bool
}

// NewDelivery creates a new unassigned Delivery with validation.
func NewDelivery(
	id kernel.UUID,
	pickup kernel.GeoPoint,
	dropoff kernel.GeoPoint,
	price float64,
	source AssignmentSource,
	createdAt time.Time,
) (*Delivery, error) {
	d := &Delivery{
		status:        Unassigned,
		isConstructed: true,
	}

	if err := errors.Join(
		d.setID(id),
		d.setPickup(pickup),
		d.setDropoff(dropoff),
		d.setPrice(price),
		d.setSource(source),
		d.setCreatedAt(createdAt),
	); err != nil {
		return nil, err
	}

	return d, nil
}

// RestoreDelivery reconstructs a Delivery from persistence without running the
// initial-state rules of NewDelivery. The driver invariant is still enforced.
func RestoreDelivery(
	id kernel.UUID,
	status Status,
	driverID *kernel.UUID,
	pickup kernel.GeoPoint,
	dropoff kernel.GeoPoint,
	price float64,
	source AssignmentSource,
	createdAt time.Time,
	assignedAt *time.Time,
	completedAt *time.Time,
) (*Delivery, error) {
	d := &Delivery{
		isConstructed: true,
		assignedAt:    assignedAt,
		completedAt:   completedAt,
	}

	if err := errors.Join(
		d.setID(id),
		status.Validate(),
		d.setPickup(pickup),
		d.setDropoff(dropoff),
		d.setPrice(price),
		d.setSource(source),
		d.setCreatedAt(createdAt),
	); err != nil {
		return nil, err
	}

	if status != Unassigned && driverID == nil {
		return nil, ErrDriverIsRequired
	}
	if driverID != nil {
		if err := driverID.Validate(); err != nil {
			return nil, err
		}
	}

	d.status = status
	d.driverID = driverID
	return d, nil
}

// Validate ensures the Delivery was properly constructed.
func (d *Delivery) Validate() error {
	if d == nil || !d.isConstructed {
		return ErrDeliveryIsNotConstructed
	}
	return nil
}

// IsEqual compares two deliveries by their unique identifiers.
func (d *Delivery) IsEqual(other *Delivery) bool {
	return other != nil && d.id.IsEqual(other.id)
}

// ID returns the delivery's unique identifier.
func (d *Delivery) ID() kernel.UUID {
	return d.id
}

// Status returns the current lifecycle status.
func (d *Delivery) Status() Status {
	return d.status
}

// Driver returns the assigned driver's ID, or nil if unassigned.
func (d *Delivery) Driver() *kernel.UUID {
	return d.driverID
}

// Pickup returns the pickup point.
func (d *Delivery) Pickup() kernel.GeoPoint {
	return d.pickup
}

// Dropoff returns the dropoff point.
func (d *Delivery) Dropoff() kernel.GeoPoint {
	return d.dropoff
}

// Price returns the total price of the delivery.
func (d *Delivery) Price() float64 {
	return d.price
}

// Source returns the assignment-source tag.
func (d *Delivery) Source() AssignmentSource {
	return d.source
}

// CreatedAt returns the creation timestamp.
func (d *Delivery) CreatedAt() time.Time {
	return d.createdAt
}

// AssignedAt returns the assignment timestamp, or nil if never assigned.
func (d *Delivery) AssignedAt() *time.Time {
	return d.assignedAt
}

// CompletedAt returns the completion timestamp, or nil while in progress.
func (d *Delivery) CompletedAt() *time.Time {
	return d.completedAt
}

// IsTerminal reports whether the delivery reached an absorbing end state.
func (d *Delivery) IsTerminal() bool {
	return d.status.IsTerminal()
}

// Assign transitions the delivery to Assigned under the given driver.
// Valid from Unassigned and Offered. On success the assignment timestamp
// is recorded.
func (d *Delivery) Assign(driverID kernel.UUID, at time.Time) error {
	if err := driverID.Validate(); err != nil {
		return err
	}

	newStatus, err := d.status.Transition(Assigned)
	if err != nil {
		return err
	}

	d.status = newStatus
	d.driverID = &driverID
	d.assignedAt = &at
	return nil
}

// Advance moves the delivery to the requested next status.
// A rejected transition returns a StatusTransitionError and leaves the
// aggregate untouched - no partial writes. Reaching a terminal status
// records the completion timestamp.
//
// Advance cannot be used to assign a driver; use Assign for that, so the
// driver invariant holds for every status past Unassigned.
func (d *Delivery) Advance(next Status, at time.Time) error {
	if next == Assigned {
		return errs.NewStatusTransitionError(d.status.String(), next.String())
	}

	newStatus, err := d.status.Transition(next)
	if err != nil {
		return err
	}

	if newStatus != Unassigned && d.driverID == nil {
		return ErrDriverIsRequired
	}

	d.status = newStatus
	if newStatus == Unassigned {
		d.driverID = nil
	}
	if newStatus.IsTerminal() {
		d.completedAt = &at
	}
	return nil
}

// Release returns an offered delivery to the unassigned pool (decline).
func (d *Delivery) Release() error {
	newStatus, err := d.status.Transition(Unassigned)
	if err != nil {
		return err
	}

	d.status = newStatus
	d.driverID = nil
	return nil
}

// Offer marks the delivery as addressed to the given driver, pending
// accept or decline.
func (d *Delivery) Offer(driverID kernel.UUID) error {
	if err := driverID.Validate(); err != nil {
		return err
	}

	if d.status != Unassigned {
		return errs.NewStatusTransitionError(d.status.String(), Offered.String())
	}

	d.status = Offered
	d.driverID = &driverID
	return nil
}

func (d *Delivery) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	d.id = id
	return nil
}

func (d *Delivery) setPickup(pickup kernel.GeoPoint) error {
	if err := pickup.Validate(); err != nil {
		return err
	}
	d.pickup = pickup
	return nil
}

func (d *Delivery) setDropoff(dropoff kernel.GeoPoint) error {
	if err := dropoff.Validate(); err != nil {
		return err
	}
	d.dropoff = dropoff
	return nil
}

func (d *Delivery) setPrice(price float64) error {
	if price < 0 {
		return errs.NewValueIsInvalidErrorWithCause("price",
			fmt.Errorf("%f is negative", price))
	}
	d.price = price
	return nil
}

func (d *Delivery) setSource(source AssignmentSource) error {
	if err := source.Validate(); err != nil {
		return err
	}
	d.source = source
	return nil
}

func (d *Delivery) setCreatedAt(createdAt time.Time) error {
	if createdAt.IsZero() {
		return errs.NewValueIsRequiredError("createdAt")
	}
	d.createdAt = createdAt
	return nil
}
