// Package impact estimates the environmental impact of an investment in a
// project: a statistical baseline from the model bundle, refined by per-category
// domain rules, regional boosts and a small jitter.
package impact

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/metrics"
	"github.com/aristath/ecovest/internal/modules/impact/features"
	"github.com/aristath/ecovest/internal/modules/impact/model"
)

// PreviewAmount is the reference amount used to compare projects.
const PreviewAmount = 1000.0

// RateWriter stores per-1000 impact rates on a project.
type RateWriter interface {
	UpdateImpactRates(ctx context.Context, profileID int64, rates domain.ImpactEstimate) error
}

type estimateOptions struct {
	seed     uint64
	seeded   bool
	noJitter bool
}

// EstimateOption tunes a single estimate.
type EstimateOption func(*estimateOptions)

// WithSeed makes the jitter of this call reproducible.
func WithSeed(seed uint64) EstimateOption {
	return func(o *estimateOptions) {
		o.seed = seed
		o.seeded = true
	}
}

// WithoutJitter disables jitter for this call.
func WithoutJitter() EstimateOption {
	return func(o *estimateOptions) {
		o.noJitter = true
	}
}

// Calculator is the impact estimation service. It is safe for concurrent use.
type Calculator struct {
	encoder   *features.Encoder
	predictor *Predictor
	rules     Rules
	jitter    Jitter
	rates     RateWriter
	metrics   *metrics.Registry
	log       zerolog.Logger
}

// NewCalculator creates a calculator using the default override table.
func NewCalculator(
	encoder *features.Encoder,
	predictor *Predictor,
	jitter Jitter,
	reg *metrics.Registry,
	log zerolog.Logger,
) *Calculator {
	return &Calculator{
		encoder:   encoder,
		predictor: predictor,
		rules:     DefaultRules(),
		jitter:    jitter,
		metrics:   reg,
		log:       log.With().Str("component", "impact_calculator").Logger(),
	}
}

// SetRules replaces the override table.
func (c *Calculator) SetRules(rules Rules) {
	c.rules = rules
}

// SetRateWriter enables the persist path of EstimateImpactForAmount.
func (c *Calculator) SetRateWriter(w RateWriter) {
	c.rates = w
}

// Predictor returns the underlying predictor.
func (c *Calculator) Predictor() *Predictor {
	return c.predictor
}

// EstimateImpact returns the impact of investing amount in a project.
func (c *Calculator) EstimateImpact(ctx context.Context, amount float64, profile domain.ProjectProfile, opts ...EstimateOption) (domain.ImpactEstimate, error) {
	o := estimateOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	primary := ""
	est, err := c.estimate(ctx, features.InputFromProfile(amount, profile), o, &primary)

	outcome := metrics.OutcomeOK
	switch {
	case domain.IsValidationError(err):
		outcome = metrics.OutcomeInvalid
	case err != nil:
		outcome = metrics.OutcomeError
		c.log.Error().Err(err).Int64("profile_id", profile.ID).Msg("Impact estimate failed")
	}
	c.metrics.RecordEstimate(primary, outcome, time.Since(start))

	return est, err
}

// EstimateImpactForAmount estimates for an explicit amount, typically the
// preview amount. With persist set and amount equal to PreviewAmount, the
// result is also written back as the project's per-1000 rates.
func (c *Calculator) EstimateImpactForAmount(ctx context.Context, profile domain.ProjectProfile, amount float64, persist bool, opts ...EstimateOption) (domain.ImpactEstimate, error) {
	est, err := c.EstimateImpact(ctx, amount, profile, opts...)
	if err != nil {
		return domain.ImpactEstimate{}, err
	}
	if !persist || amount != PreviewAmount {
		return est, nil
	}

	if c.rates == nil {
		return domain.ImpactEstimate{}, &domain.ConfigurationError{Component: "impact calculator", Message: "no rate writer for persisted previews"}
	}
	if profile.ID == 0 {
		return domain.ImpactEstimate{}, domain.NewValidationError("profile_id", "persisting rates requires a saved project")
	}
	if err := c.rates.UpdateImpactRates(ctx, profile.ID, est); err != nil {
		return domain.ImpactEstimate{}, fmt.Errorf("failed to persist impact rates for project %d: %w", profile.ID, err)
	}
	c.log.Debug().Int64("profile_id", profile.ID).Msg("Persisted per-1000 impact rates")
	return est, nil
}

// Preview is a read-only estimate at PreviewAmount.
func (c *Calculator) Preview(ctx context.Context, profile domain.ProjectProfile, opts ...EstimateOption) (domain.ImpactEstimate, error) {
	return c.EstimateImpactForAmount(ctx, profile, PreviewAmount, false, opts...)
}

// Retrain forces a new bundle to be trained and persisted.
func (c *Calculator) Retrain(ctx context.Context) (*model.Bundle, error) {
	return c.predictor.Retrain(ctx)
}

func (c *Calculator) estimate(ctx context.Context, raw features.Input, o estimateOptions, primary *string) (domain.ImpactEstimate, error) {
	in, err := features.Normalize(raw)
	if err != nil {
		return domain.ImpactEstimate{}, err
	}
	*primary = features.PrimaryCategory(in.Categories)

	baseline, err := c.baseline(ctx, in)
	if err != nil {
		return domain.ImpactEstimate{}, err
	}

	ri := RuleInput{
		Input:          in,
		Primary:        *primary,
		DurationFactor: DurationFactor(in.DurationMonths),
		ScaleFactor:    ScaleFactor(in.Scale),
	}
	est := baseline.Scale(ri.DurationFactor * ri.ScaleFactor)
	est = c.rules.Apply(est, ri)
	est = applyLocationBoosts(est, in.Location, *primary)

	if !o.noJitter {
		seed := o.seed
		if !o.seeded {
			seed = timeSeed()
		}
		est = c.jitter.Apply(est, seed)
	}

	est = est.Floor()
	c.log.Debug().
		Str("primary", *primary).
		Float64("amount", in.Amount).
		Float64("carbon", est.Carbon).
		Float64("energy", est.Energy).
		Float64("water", est.Water).
		Msg("Estimated impact")
	return est, nil
}

// baseline encodes and predicts, retraining once on a schema mismatch.
func (c *Calculator) baseline(ctx context.Context, in features.Input) (domain.ImpactEstimate, error) {
	bundle, err := c.predictor.Ensure(ctx)
	if err != nil {
		return domain.ImpactEstimate{}, err
	}

	est, err := c.predict(ctx, in)
	if err == nil || !domain.IsSchemaMismatch(err) {
		return est, err
	}

	c.log.Warn().Err(err).Str("bundle_id", bundle.ID).Msg("Schema mismatch, retraining once")
	if _, rerr := c.predictor.RetrainStale(ctx, bundle.ID); rerr != nil {
		return domain.ImpactEstimate{}, fmt.Errorf("retrain after schema mismatch failed: %w", rerr)
	}
	return c.predict(ctx, in)
}

func (c *Calculator) predict(ctx context.Context, in features.Input) (domain.ImpactEstimate, error) {
	x, err := c.encoder.Raw(in)
	if err != nil {
		return domain.ImpactEstimate{}, err
	}
	return c.predictor.Predict(ctx, x)
}
