package queries

import (
	"errors"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var (
	ErrGetActiveDeliveriesQueryIsNotConstructed = errors.New(
		"GetActiveDeliveriesQuery must be created via NewGetActiveDeliveriesQuery constructor",
	)
)

// GetActiveDeliveriesQuery retrieves this driver's non-terminal deliveries.
// Used by the driver-facing API and by startup recovery, since intermediate
// progress is not persisted and only the last stored row survives a restart.
//
// Example:
//
//	query, err := NewGetActiveDeliveriesQuery(driverID)
//	if err != nil {
//	    return err
//	}
//	deliveries, err := handler.Handle(ctx, query)
type GetActiveDeliveriesQuery struct {
	driverID kernel.UUID

	guard guard.ConstructorGuard
}

// NewGetActiveDeliveriesQuery creates a query for the driver's active deliveries.
func NewGetActiveDeliveriesQuery(driverID kernel.UUID) (GetActiveDeliveriesQuery, error) {
	if err := driverID.Validate(); err != nil {
		return GetActiveDeliveriesQuery{}, err
	}

	return GetActiveDeliveriesQuery{
		driverID: driverID,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

// DriverID returns the driver whose deliveries are requested.
func (q GetActiveDeliveriesQuery) DriverID() kernel.UUID {
	return q.driverID
}

// Validate ensures the query was created through the constructor.
func (q GetActiveDeliveriesQuery) Validate() error {
	return q.guard.Validate(ErrGetActiveDeliveriesQueryIsNotConstructed)
}

// GetActiveDeliveriesQueryResponse is one in-progress delivery row.
type GetActiveDeliveriesQueryResponse struct {
	ID      kernel.UUID
	Status  delivery.Status
	Pickup  kernel.GeoPoint
	Dropoff kernel.GeoPoint
	Price   float64
}
