package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/config"
	"github.com/aristath/ecovest/internal/scheduler"
)

// walCheckSchedule runs the checkpoint check every half hour
const walCheckSchedule = "0 */30 * * * *"

// RegisterJobs creates the background jobs and registers them with the scheduler.
// An empty refresh schedule leaves the refresh job available for manual runs only.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(container.Metrics, log)

	jobs := &JobInstances{
		RefreshImpactMetrics: scheduler.NewRefreshImpactMetricsJob(container.InitiativeRepo, container.Calculator, false, log),
		CheckWALCheckpoints:  scheduler.NewCheckWALCheckpointsJob(container.DB, log),
	}

	if cfg.RefreshSchedule != "" {
		if err := container.Scheduler.AddJob(cfg.RefreshSchedule, jobs.RefreshImpactMetrics); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", jobs.RefreshImpactMetrics.Name(), err)
		}
	}
	if err := container.Scheduler.AddJob(walCheckSchedule, jobs.CheckWALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", jobs.CheckWALCheckpoints.Name(), err)
	}

	return jobs, nil
}
