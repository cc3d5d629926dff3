package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact"
	"github.com/aristath/ecovest/internal/modules/initiatives"
	"github.com/aristath/ecovest/internal/utils"
)

// InitiativeLister lists every initiative.
type InitiativeLister interface {
	List(ctx context.Context) ([]initiatives.Initiative, error)
}

// PreviewEstimator computes, and optionally persists, a per-1000 preview.
type PreviewEstimator interface {
	EstimateImpactForAmount(ctx context.Context, profile domain.ProjectProfile, amount float64, persist bool, opts ...impact.EstimateOption) (domain.ImpactEstimate, error)
}

// RefreshResult is the outcome for one initiative.
type RefreshResult struct {
	InitiativeID int64
	Title        string
	Old          *domain.ImpactEstimate
	New          domain.ImpactEstimate
	Err          error
}

// PercentChange returns (new-old)/old×100 for a metric. ok is false when there
// was no previous value to compare with.
func (r RefreshResult) PercentChange(m domain.Metric) (float64, bool) {
	if r.Old == nil || r.Old.Get(m) == 0 {
		return math.Inf(1), false
	}
	old := r.Old.Get(m)
	return (r.New.Get(m) - old) / old * 100, true
}

// RefreshImpactMetricsJob recomputes every initiative's per-1000 impact
// preview. In dry-run mode nothing is written.
type RefreshImpactMetricsJob struct {
	lister    InitiativeLister
	estimator PreviewEstimator
	dryRun    bool
	log       zerolog.Logger
}

// NewRefreshImpactMetricsJob creates the job.
func NewRefreshImpactMetricsJob(lister InitiativeLister, estimator PreviewEstimator, dryRun bool, log zerolog.Logger) *RefreshImpactMetricsJob {
	return &RefreshImpactMetricsJob{
		lister:    lister,
		estimator: estimator,
		dryRun:    dryRun,
		log:       log.With().Str("job", "refresh_impact_metrics").Logger(),
	}
}

// Name returns the job name
func (j *RefreshImpactMetricsJob) Name() string {
	return "refresh_impact_metrics"
}

// Run executes the refresh
func (j *RefreshImpactMetricsJob) Run() error {
	_, err := j.Refresh(context.Background())
	return err
}

// Refresh recomputes all previews and returns one result per initiative. A
// failing initiative does not stop the others; the returned error counts them.
func (j *RefreshImpactMetricsJob) Refresh(ctx context.Context) ([]RefreshResult, error) {
	list, err := j.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list initiatives: %w", err)
	}

	j.log.Info().Int("initiatives", len(list)).Bool("dry_run", j.dryRun).Msg("Refreshing impact metrics")
	stop := utils.OperationTimer(j.Name(), 5*time.Minute, j.log)

	results := make([]RefreshResult, 0, len(list))
	failed := 0
	for _, in := range list {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := RefreshResult{InitiativeID: in.ID, Title: in.Title, Old: in.Rates}
		// Seeded by ID so a project's published rates only move when the model does.
		res.New, res.Err = j.estimator.EstimateImpactForAmount(ctx, in.Profile, impact.PreviewAmount, !j.dryRun, impact.WithSeed(uint64(in.ID)))
		if res.Err != nil {
			failed++
			j.log.Warn().Err(res.Err).Int64("initiative_id", in.ID).Msg("Failed to refresh impact metrics")
		}
		results = append(results, res)
	}

	j.log.Info().
		Int("updated", len(list)-failed).
		Int("failed", failed).
		Bool("dry_run", j.dryRun).
		Dur("duration", stop()).
		Msg("Impact metrics refresh finished")

	if failed > 0 {
		return results, fmt.Errorf("%d of %d initiatives failed to refresh", failed, len(list))
	}
	return results, nil
}
