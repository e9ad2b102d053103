// Package redis implements the presence read-model on Redis: one hash per
// driver, refreshed on every scheduled send and expired automatically when
// the driver stops reporting.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/redis/go-redis/v9"
)

// presenceTTL sits just above the idle reporting cadence so a driver that
// stops reporting ages out of the read-model within a minute of a missed
// heartbeat.
const presenceTTL = 6 * time.Minute

// PresenceStore is a Redis-backed implementation of ports.PresenceStore.
type PresenceStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPresenceStore creates a presence store over the given Redis client.
func NewPresenceStore(client *redis.Client, logger *slog.Logger) *PresenceStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PresenceStore{
		client: client,
		logger: logger.With("component", "presence_store"),
	}
}

func presenceKey(driverID kernel.UUID) string {
	return fmt.Sprintf("driver:presence:%s", driverID)
}

// Upsert writes the driver's position and activity hash and refreshes its TTL.
func (s *PresenceStore) Upsert(
	ctx context.Context,
	driverID kernel.UUID,
	sample kernel.LocationSample,
	activity driver.Activity,
) error {
	key := presenceKey(driverID)

	fields := map[string]string{
		"latitude":    strconv.FormatFloat(sample.Point().Latitude(), 'f', 6, 64),
		"longitude":   strconv.FormatFloat(sample.Point().Longitude(), 'f', 6, 64),
		"speed_kmh":   strconv.FormatFloat(sample.SpeedKmh(), 'f', 1, 64),
		"heading_deg": strconv.FormatFloat(sample.HeadingDeg(), 'f', 1, 64),
		"accuracy_m":  strconv.FormatFloat(sample.AccuracyM(), 'f', 1, 64),
		"taken_at":    sample.TakenAt().UTC().Format(time.RFC3339),
		"activity":    string(activity),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return nil
}

// Clear removes the driver's presence record.
func (s *PresenceStore) Clear(ctx context.Context, driverID kernel.UUID) error {
	return s.client.Del(ctx, presenceKey(driverID)).Err()
}
