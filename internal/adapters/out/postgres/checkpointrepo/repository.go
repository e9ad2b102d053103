package checkpointrepo

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormCheckpointRepository implements CheckpointRepository using GORM.
type GormCheckpointRepository struct {
	db *gorm.DB
}

// NewGormCheckpointRepository creates a new GORM checkpoint repository.
func NewGormCheckpointRepository(db *gorm.DB) *GormCheckpointRepository {
	return &GormCheckpointRepository{db: db}
}

// Append durably records one checkpoint row.
func (r *GormCheckpointRepository) Append(ctx context.Context, checkpoint ports.Checkpoint) error {
	if err := checkpoint.Sample.Validate(); err != nil {
		return err
	}

	dto := fromDomain(checkpoint)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return errs.NewPersistenceError("append checkpoint", err)
	}

	return nil
}

// GetAllForDelivery retrieves the checkpoints recorded for a delivery in
// append order.
func (r *GormCheckpointRepository) GetAllForDelivery(
	ctx context.Context,
	deliveryID kernel.UUID,
) ([]ports.Checkpoint, error) {
	if err := deliveryID.Validate(); err != nil {
		return nil, err
	}

	var dtos []CheckpointDTO
	err := r.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID.Bytes()).
		Order("recorded_at").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	checkpoints := make([]ports.Checkpoint, 0, len(dtos))
	for _, dto := range dtos {
		checkpoint, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, checkpoint)
	}

	return checkpoints, nil
}
