package deliveryrepo

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormDeliveryRepository implements DeliveryRepository using GORM.
type GormDeliveryRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

// aggregateTracker defines the interface for tracking aggregates.
type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

// NewGormDeliveryRepository creates a new GORM delivery repository.
func NewGormDeliveryRepository(db *gorm.DB, tracker aggregateTracker) *GormDeliveryRepository {
	return &GormDeliveryRepository{
		db:      db,
		tracker: tracker,
	}
}

// Add saves a new delivery to the database.
func (r *GormDeliveryRepository) Add(ctx context.Context, aggregate *delivery.Delivery) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Get retrieves a delivery by ID.
func (r *GormDeliveryRepository) Get(ctx context.Context, id kernel.UUID) (*delivery.Delivery, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto DeliveryDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("delivery", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// Claim atomically assigns an offered delivery to the driver. The single
// conditional update is the arbiter: whichever driver's statement matches the
// row first wins, every other caller affects zero rows and gets a
// ClaimConflictError.
func (r *GormDeliveryRepository) Claim(
	ctx context.Context,
	deliveryID kernel.UUID,
	driverID kernel.UUID,
) (*delivery.Delivery, error) {
	if err := errors.Join(deliveryID.Validate(), driverID.Validate()); err != nil {
		return nil, err
	}

	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&DeliveryDTO{}).
		Where("id = ? AND driver_id = ? AND status = ?",
			deliveryID.Bytes(), driverID.Bytes(), delivery.Offered.String()).
		Updates(map[string]any{
			"status":      delivery.Assigned.String(),
			"assigned_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errs.NewClaimConflictError(deliveryID.String())
	}

	claimed, err := r.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	r.tracker.TrackAggregate(claimed.ID(), claimed)
	return claimed, nil
}

// Release atomically returns an offered delivery to the unassigned pool,
// used when the driver declines. Same arbitration as Claim: zero affected
// rows means the offer was already taken or expired.
func (r *GormDeliveryRepository) Release(
	ctx context.Context,
	deliveryID kernel.UUID,
	driverID kernel.UUID,
) error {
	if err := errors.Join(deliveryID.Validate(), driverID.Validate()); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&DeliveryDTO{}).
		Where("id = ? AND driver_id = ? AND status = ?",
			deliveryID.Bytes(), driverID.Bytes(), delivery.Offered.String()).
		Updates(map[string]any{
			"status":    delivery.Unassigned.String(),
			"driver_id": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewClaimConflictError(deliveryID.String())
	}

	return nil
}

// UpdateFinal persists a delivery that reached a terminal status. Writes for
// non-terminal statuses are rejected; the broadcast channel carries those.
func (r *GormDeliveryRepository) UpdateFinal(ctx context.Context, aggregate *delivery.Delivery) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}
	if !aggregate.IsTerminal() {
		return errs.NewValueIsInvalidError("status must be terminal for UpdateFinal")
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).
		Model(&DeliveryDTO{}).
		Where("id = ?", dto.ID).
		Updates(map[string]any{
			"status":       dto.Status,
			"driver_id":    dto.DriverID,
			"assigned_at":  dto.AssignedAt,
			"completed_at": dto.CompletedAt,
		})
	if result.Error != nil {
		return errs.NewPersistenceError("update final status", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NewPersistenceError("update final status", gorm.ErrRecordNotFound)
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// GetAllActiveForDriver retrieves the driver's non-terminal deliveries.
func (r *GormDeliveryRepository) GetAllActiveForDriver(
	ctx context.Context,
	driverID kernel.UUID,
) ([]*delivery.Delivery, error) {
	if err := driverID.Validate(); err != nil {
		return nil, err
	}

	var dtos []DeliveryDTO
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND status NOT IN ?", driverID.Bytes(), []string{
			delivery.Delivered.String(),
			delivery.Cancelled.String(),
			delivery.Failed.String(),
		}).
		Order("created_at").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	deliveries := make([]*delivery.Delivery, 0, len(dtos))
	for _, dto := range dtos {
		d, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}

	return deliveries, nil
}
