package driver

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

// Domain errors for driver operations.
var (
	// ErrNameIsRequired is returned when attempting to create a driver without a name.
	ErrNameIsRequired = errs.NewValueIsRequiredError("name")
	// ErrDriverIsNotConstructed is returned when using an improperly initialized Driver.
	ErrDriverIsNotConstructed = errors.New("Driver must be created via NewDriver constructor")
	// ErrDriverIsOffline is returned when an operation requires the driver to be online.
	ErrDriverIsOffline = errors.New("driver is offline")
	// ErrDriverIsNotVerified is returned when an unverified driver tries to go online.
	ErrDriverIsNotVerified = errors.New("driver is not verified")
)

// Driver represents the mobile worker this client instance acts for.
// It is an aggregate root that manages the driver's availability and the last
// position observed by the tracking loop.
//
// Business rules:
//   - Driver must have a valid UUID and a non-empty name
//   - Only verified drivers can go online
//   - Location tracking implies being online; going offline stops tracking
//
// Example usage:
//
//	drv, err := NewDriver(kernel.NewUUID(), "Alice", true)
//	if err != nil {
//	    // Handle construction error
//	}
//	if err := drv.GoOnline(); err != nil {
//	    // Driver not verified
//	}
type Driver struct {
	id       kernel.UUID
	name     string
	verified bool

	online   bool
	tracking bool

	lastPosition *kernel.LocationSample

	guard guard.ConstructorGuard
}

// NewDriver creates a new Driver with the specified identity.
// The driver starts offline with tracking stopped and no known position.
func NewDriver(id kernel.UUID, name string, verified bool) (*Driver, error) {
	d := &Driver{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		d.setID(id),
		d.setName(name),
	); err != nil {
		return nil, err
	}

	d.verified = verified
	return d, nil
}

// Validate ensures the Driver was properly constructed.
func (d *Driver) Validate() error {
	if d == nil {
		return ErrDriverIsNotConstructed
	}
	return d.guard.Validate(ErrDriverIsNotConstructed)
}

// ID returns the driver's unique identifier.
func (d *Driver) ID() kernel.UUID {
	return d.id
}

// Name returns the driver's display name.
func (d *Driver) Name() string {
	return d.name
}

// IsVerified reports whether the driver passed verification.
func (d *Driver) IsVerified() bool {
	return d.verified
}

// IsOnline reports whether the driver is accepting offers.
func (d *Driver) IsOnline() bool {
	return d.online
}

// IsTracking reports whether the location broadcast loop is active.
func (d *Driver) IsTracking() bool {
	return d.tracking
}

// LastPosition returns the most recent observed position, or nil if none.
func (d *Driver) LastPosition() *kernel.LocationSample {
	return d.lastPosition
}

// GoOnline makes the driver available for offers.
// Only verified drivers may go online.
func (d *Driver) GoOnline() error {
	if !d.verified {
		return ErrDriverIsNotVerified
	}
	d.online = true
	return nil
}

// GoOffline withdraws the driver from dispatch and stops tracking.
func (d *Driver) GoOffline() {
	d.online = false
	d.tracking = false
}

// StartTracking marks the broadcast loop active. The driver must be online.
func (d *Driver) StartTracking() error {
	if !d.online {
		return ErrDriverIsOffline
	}
	d.tracking = true
	return nil
}

// StopTracking marks the broadcast loop inactive.
func (d *Driver) StopTracking() {
	d.tracking = false
}

// RecordPosition stores the latest observed position sample.
func (d *Driver) RecordPosition(sample kernel.LocationSample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	d.lastPosition = &sample
	return nil
}

func (d *Driver) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	d.id = id
	return nil
}

func (d *Driver) setName(name string) error {
	if name == "" {
		return ErrNameIsRequired
	}
	d.name = name
	return nil
}
