package queries

import (
	"context"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetActiveDeliveriesQueryHandler reads the driver's non-terminal deliveries
// straight from the database, bypassing the aggregate for a cheap projection.
//
// Example:
//
//	handler := NewGetActiveDeliveriesQueryHandler(db)
//	query, _ := NewGetActiveDeliveriesQuery(driverID)
//	active, err := handler.Handle(ctx, query)
type GetActiveDeliveriesQueryHandler struct {
	db *gorm.DB
}

// NewGetActiveDeliveriesQueryHandler creates a handler for active delivery queries.
// Requires a GORM database connection for query execution.
func NewGetActiveDeliveriesQueryHandler(db *gorm.DB) GetActiveDeliveriesQueryHandler {
	return GetActiveDeliveriesQueryHandler{db: db}
}

// Handle executes the query. Rows in terminal statuses are excluded; results
// are sorted by creation time so the oldest in-progress delivery comes first.
func (h GetActiveDeliveriesQueryHandler) Handle(
	ctx context.Context,
	query GetActiveDeliveriesQuery,
) ([]GetActiveDeliveriesQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	deliveries := make([]GetActiveDeliveriesQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			status,
			pickup_lat,
			pickup_lon,
			dropoff_lat,
			dropoff_lon,
			price
		FROM deliveries
		WHERE driver_id = ?
		  AND status NOT IN (?, ?, ?)
		ORDER BY created_at
	`, query.DriverID().String(),
		delivery.Delivered.String(), delivery.Cancelled.String(), delivery.Failed.String(),
	).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp GetActiveDeliveriesQueryResponse
		var id uuid.UUID
		var status string
		var pickupLat, pickupLon, dropoffLat, dropoffLon float64

		err = rows.Scan(
			&id,
			&status,
			&pickupLat,
			&pickupLon,
			&dropoffLat,
			&dropoffLon,
			&resp.Price,
		)
		if err != nil {
			return nil, err
		}

		deliveryID, idErr := kernel.UUIDFromBytes(id[:])
		if idErr != nil {
			return nil, idErr
		}
		resp.ID = deliveryID

		resp.Status, err = delivery.StatusFromString(status)
		if err != nil {
			return nil, err
		}

		pickup, pErr := kernel.NewGeoPoint(pickupLat, pickupLon)
		if pErr != nil {
			return nil, pErr
		}
		resp.Pickup = pickup

		dropoff, dErr := kernel.NewGeoPoint(dropoffLat, dropoffLon)
		if dErr != nil {
			return nil, dErr
		}
		resp.Dropoff = dropoff

		deliveries = append(deliveries, resp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return deliveries, nil
}
