package jobs

import (
	"context"
	"log/slog"

	"dispatch/internal/core/application/flow"
	"dispatch/internal/core/ports"

	"github.com/robfig/cron/v3"
)

// availabilitySchedule is the idle reporting cadence. While a delivery is
// active the broadcast scheduler refreshes presence on every send, so this
// job only has to keep an idle driver visible.
const availabilitySchedule = "0 */5 * * * *"

// DriverStateSource reports the driver's current shift state.
type DriverStateSource interface {
	State() flow.DriverState
}

// AvailabilityJob periodically re-upserts the driver's presence record so
// an online, idle driver does not age out of the presence read-model.
type AvailabilityJob struct {
	states    DriverStateSource
	positions ports.PositionSource
	presence  ports.PresenceStore
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewAvailabilityJob creates the idle availability heartbeat job.
// Runs every five minutes.
func NewAvailabilityJob(
	states DriverStateSource,
	positions ports.PositionSource,
	presence ports.PresenceStore,
	logger *slog.Logger,
) *AvailabilityJob {
	return &AvailabilityJob{
		states:    states,
		positions: positions,
		presence:  presence,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger.With("component", "availability_job"),
	}
}

// Start begins the heartbeat schedule.
func (j *AvailabilityJob) Start() error {
	_, err := j.cron.AddFunc(availabilitySchedule, func() {
		ctx := context.Background()
		if err := j.beat(ctx); err != nil {
			j.logger.WarnContext(ctx, "Availability heartbeat failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Availability job started (running every five minutes)")
	return nil
}

// Stop stops the heartbeat schedule.
func (j *AvailabilityJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "Availability job stopped")
}

// beat refreshes the presence record for an online, idle driver. Offline
// drivers are skipped, as are drivers with an active delivery since the
// broadcast scheduler already refreshes presence on every send. A missing
// position fix skips the refresh silently because the presence record then
// ages out on purpose.
func (j *AvailabilityJob) beat(ctx context.Context) error {
	state := j.states.State()
	if !state.Online || state.ActiveDeliveryID != nil {
		return nil
	}

	sample, err := j.positions.Current(ctx)
	if err != nil {
		j.logger.DebugContext(ctx, "No position fix for availability heartbeat", "error", err)
		return nil
	}

	return j.presence.Upsert(ctx, state.DriverID, sample, state.Activity)
}
