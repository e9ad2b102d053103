// Package deliveryrepo provides data transfer objects and mapping functions for
// delivery persistence. This package implements the repository pattern for the
// delivery aggregate, handling the conversion between domain entities and
// database representations, including the conditional claim/release updates
// that arbitrate offer acceptance across the fleet.
package deliveryrepo

import (
	"time"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

// DeliveryDTO represents the database structure for persisting delivery
// aggregates. Status is stored by name and indexed together with the driver
// so claim/release conditional updates and active-delivery scans stay cheap.
type DeliveryDTO struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	DriverID    *uuid.UUID `gorm:"type:uuid;index"`
	Status      string     `gorm:"type:varchar(32);index"`
	PickupLat   float64
	PickupLon   float64
	DropoffLat  float64
	DropoffLon  float64
	Price       float64
	Source      int
	CreatedAt   time.Time
	AssignedAt  *time.Time
	CompletedAt *time.Time
}

// TableName specifies the database table name for delivery entities.
func (DeliveryDTO) TableName() string {
	return "deliveries"
}

// fromDomain converts a delivery domain aggregate to its database representation.
func fromDomain(aggregate *delivery.Delivery) DeliveryDTO {
	var driverID *uuid.UUID
	if id := aggregate.Driver(); id != nil {
		raw := id.Bytes()
		driverID = &raw
	}

	return DeliveryDTO{
		ID:          aggregate.ID().Bytes(),
		DriverID:    driverID,
		Status:      aggregate.Status().String(),
		PickupLat:   aggregate.Pickup().Latitude(),
		PickupLon:   aggregate.Pickup().Longitude(),
		DropoffLat:  aggregate.Dropoff().Latitude(),
		DropoffLon:  aggregate.Dropoff().Longitude(),
		Price:       aggregate.Price(),
		Source:      int(aggregate.Source()),
		CreatedAt:   aggregate.CreatedAt(),
		AssignedAt:  aggregate.AssignedAt(),
		CompletedAt: aggregate.CompletedAt(),
	}
}

// toDomain converts a database DTO to a delivery domain aggregate using
// RestoreDelivery, so the driver invariant is re-checked on the way in.
func toDomain(dto DeliveryDTO) (*delivery.Delivery, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}

	var driverID *kernel.UUID
	if dto.DriverID != nil {
		dID, driverErr := kernel.UUIDFromBytes((*dto.DriverID)[:])
		if driverErr != nil {
			return nil, driverErr
		}
		driverID = &dID
	}

	status, err := delivery.StatusFromString(dto.Status)
	if err != nil {
		return nil, err
	}

	pickup, err := kernel.NewGeoPoint(dto.PickupLat, dto.PickupLon)
	if err != nil {
		return nil, err
	}

	dropoff, err := kernel.NewGeoPoint(dto.DropoffLat, dto.DropoffLon)
	if err != nil {
		return nil, err
	}

	return delivery.RestoreDelivery(
		id, status, driverID, pickup, dropoff, dto.Price,
		delivery.AssignmentSource(dto.Source), dto.CreatedAt,
		dto.AssignedAt, dto.CompletedAt)
}
