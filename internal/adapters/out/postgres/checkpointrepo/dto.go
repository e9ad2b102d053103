// Package checkpointrepo persists critical-event position checkpoints: the one
// durable sample recorded at pickup arrival and delivery completion, kept for
// audit and dispute resolution regardless of the adaptive broadcast cadence.
package checkpointrepo

import (
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"

	"github.com/google/uuid"
)

// CheckpointDTO represents the database structure for checkpoint rows.
// Rows are append-only; nothing updates or deletes them.
type CheckpointDTO struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeliveryID uuid.UUID `gorm:"type:uuid;index"`
	DriverID   uuid.UUID `gorm:"type:uuid"`
	Event      string    `gorm:"type:varchar(32)"`
	Latitude   float64
	Longitude  float64
	SpeedKmh   float64
	HeadingDeg float64
	AccuracyM  float64
	TakenAt    time.Time
	RecordedAt time.Time
}

// TableName specifies the database table name for checkpoint entities.
func (CheckpointDTO) TableName() string {
	return "delivery_checkpoints"
}

// fromDomain converts a checkpoint to its database representation.
func fromDomain(checkpoint ports.Checkpoint) CheckpointDTO {
	return CheckpointDTO{
		ID:         checkpoint.ID.Bytes(),
		DeliveryID: checkpoint.DeliveryID.Bytes(),
		DriverID:   checkpoint.DriverID.Bytes(),
		Event:      string(checkpoint.Event),
		Latitude:   checkpoint.Sample.Point().Latitude(),
		Longitude:  checkpoint.Sample.Point().Longitude(),
		SpeedKmh:   checkpoint.Sample.SpeedKmh(),
		HeadingDeg: checkpoint.Sample.HeadingDeg(),
		AccuracyM:  checkpoint.Sample.AccuracyM(),
		TakenAt:    checkpoint.Sample.TakenAt(),
		RecordedAt: checkpoint.RecordedAt,
	}
}

// toDomain converts a database DTO to a checkpoint.
func toDomain(dto CheckpointDTO) (ports.Checkpoint, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return ports.Checkpoint{}, err
	}

	deliveryID, err := kernel.UUIDFromBytes(dto.DeliveryID[:])
	if err != nil {
		return ports.Checkpoint{}, err
	}

	driverID, err := kernel.UUIDFromBytes(dto.DriverID[:])
	if err != nil {
		return ports.Checkpoint{}, err
	}

	point, err := kernel.NewGeoPoint(dto.Latitude, dto.Longitude)
	if err != nil {
		return ports.Checkpoint{}, err
	}

	sample, err := kernel.NewLocationSample(point, dto.SpeedKmh, dto.HeadingDeg, dto.AccuracyM, dto.TakenAt)
	if err != nil {
		return ports.Checkpoint{}, err
	}

	return ports.Checkpoint{
		ID:         id,
		DeliveryID: deliveryID,
		DriverID:   driverID,
		Event:      ports.CheckpointEvent(dto.Event),
		Sample:     sample,
		RecordedAt: dto.RecordedAt,
	}, nil
}
