// Package jobs provides the scheduled background tasks of the dispatch
// client, built on github.com/robfig/cron/v3 and coordinated through
// JobManager.
package jobs

import (
	"fmt"
	"log/slog"

	"dispatch/internal/core/application/flow"
	"dispatch/internal/core/ports"
)

// JobManager coordinates all scheduled jobs in the application.
// Provides a unified interface to start and stop all background jobs.
type JobManager struct {
	availabilityJob *AvailabilityJob
}

// NewJobManager creates a job manager with all required jobs wired.
func NewJobManager(
	orchestrator *flow.Orchestrator,
	positions ports.PositionSource,
	presence ports.PresenceStore,
	logger *slog.Logger,
) *JobManager {
	return &JobManager{
		availabilityJob: NewAvailabilityJob(orchestrator, positions, presence, logger),
	}
}

// StartAll starts all scheduled jobs.
func (jm *JobManager) StartAll() error {
	if err := jm.availabilityJob.Start(); err != nil {
		return fmt.Errorf("failed to start availability job: %w", err)
	}

	return nil
}

// StopAll stops all scheduled jobs gracefully.
func (jm *JobManager) StopAll() {
	jm.availabilityJob.Stop()
}
