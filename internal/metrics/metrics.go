// Package metrics exposes Prometheus collectors for the impact engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Model initialisation sources.
const (
	SourceLoaded  = "loaded"
	SourceTrained = "trained"
	SourceRetrain = "retrain"
)

// Estimate outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Registry holds every collector. A nil *Registry is valid and records nothing,
// so components can be built without telemetry in tests.
type Registry struct {
	registry *prometheus.Registry

	// Impact estimation
	Estimates        *prometheus.CounterVec
	EstimateDuration *prometheus.HistogramVec

	// Model lifecycle
	ModelInits       *prometheus.CounterVec
	SchemaRetrains   prometheus.Counter
	ModelTrainedUnix prometheus.Gauge

	// Portfolio analysis
	PortfolioAnalyses prometheus.Counter
	SkippedHoldings   prometheus.Counter

	// Background jobs
	JobRuns *prometheus.CounterVec
}

// NewRegistry creates a registry with all collectors plus the Go runtime and
// process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		Estimates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecovest_impact_estimates_total",
				Help: "Impact estimates by primary category and outcome",
			},
			[]string{"category", "outcome"},
		),

		EstimateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ecovest_impact_estimate_duration_seconds",
				Help:    "Time to compute one impact estimate",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5},
			},
			[]string{"outcome"},
		),

		ModelInits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecovest_model_initialisations_total",
				Help: "Model bundle initialisations by source",
			},
			[]string{"source"},
		),

		SchemaRetrains: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ecovest_model_schema_retrains_total",
				Help: "Retrains triggered by a feature schema mismatch",
			},
		),

		ModelTrainedUnix: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ecovest_model_trained_timestamp_seconds",
				Help: "Training time of the active model bundle",
			},
		),

		PortfolioAnalyses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ecovest_portfolio_analyses_total",
				Help: "Portfolio reports generated",
			},
		),

		SkippedHoldings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ecovest_portfolio_skipped_holdings_total",
				Help: "Investments excluded from reports because their profile was unusable",
			},
		),

		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecovest_job_runs_total",
				Help: "Scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Estimates,
		r.EstimateDuration,
		r.ModelInits,
		r.SchemaRetrains,
		r.ModelTrainedUnix,
		r.PortfolioAnalyses,
		r.SkippedHoldings,
		r.JobRuns,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordEstimate records one estimate.
func (r *Registry) RecordEstimate(category, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	if category == "" {
		category = "unknown"
	}
	r.Estimates.WithLabelValues(category, outcome).Inc()
	r.EstimateDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordModelInit records a bundle becoming active.
func (r *Registry) RecordModelInit(source string, trainedAt time.Time) {
	if r == nil {
		return
	}
	r.ModelInits.WithLabelValues(source).Inc()
	r.ModelTrainedUnix.Set(float64(trainedAt.Unix()))
}

// RecordSchemaRetrain records a retrain caused by a schema mismatch.
func (r *Registry) RecordSchemaRetrain() {
	if r == nil {
		return
	}
	r.SchemaRetrains.Inc()
}

// RecordPortfolioAnalysis records one report and how many holdings it skipped.
func (r *Registry) RecordPortfolioAnalysis(skipped int) {
	if r == nil {
		return
	}
	r.PortfolioAnalyses.Inc()
	r.SkippedHoldings.Add(float64(skipped))
}

// RecordJobRun records a scheduled job execution.
func (r *Registry) RecordJobRun(job string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.JobRuns.WithLabelValues(job, result).Inc()
}
