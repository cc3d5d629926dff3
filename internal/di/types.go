// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/ecovest/internal/database"
	"github.com/aristath/ecovest/internal/metrics"
	"github.com/aristath/ecovest/internal/modules/impact"
	"github.com/aristath/ecovest/internal/modules/impact/features"
	"github.com/aristath/ecovest/internal/modules/impact/modelstore"
	"github.com/aristath/ecovest/internal/modules/initiatives"
	"github.com/aristath/ecovest/internal/modules/portfolio"
	"github.com/aristath/ecovest/internal/scheduler"
)

// Container holds all application dependencies.
// It is the single source of truth for every long-lived component.
type Container struct {
	// Database
	DB *database.DB

	// Telemetry
	Metrics *metrics.Registry

	// Impact engine
	Encoder    *features.Encoder
	ModelStore *modelstore.Store
	Predictor  *impact.Predictor
	Calculator *impact.Calculator

	// Repositories
	InitiativeRepo *initiatives.Repository

	// Services
	InitiativeService *initiatives.Service
	PortfolioAnalyzer *portfolio.Analyzer

	// Scheduling
	Scheduler *scheduler.Scheduler
}

// JobInstances holds references to registered jobs for manual triggering
type JobInstances struct {
	RefreshImpactMetrics *scheduler.RefreshImpactMetricsJob
	CheckWALCheckpoints  *scheduler.CheckWALCheckpointsJob
}

// Close releases the container's resources. The scheduler must already be
// stopped.
func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
