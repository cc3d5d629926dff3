package model

import (
	"fmt"
	"time"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact/features"
)

// Bundle is the matched set of three regressors and the scaler they were
// trained against. The four parts are only ever saved and loaded together.
type Bundle struct {
	ID            string
	SchemaVersion string
	FeatureCount  int
	CorpusVersion string
	TrainedAt     time.Time
	Scaler        *Scaler
	Carbon        *Regressor
	Energy        *Regressor
	Water         *Regressor
}

// Regressor returns the regressor for a metric.
func (b *Bundle) Regressor(m domain.Metric) *Regressor {
	switch m {
	case domain.MetricCarbon:
		return b.Carbon
	case domain.MetricEnergy:
		return b.Energy
	case domain.MetricWater:
		return b.Water
	}
	return nil
}

// Validate checks that all parts are present and agree on the feature width.
func (b *Bundle) Validate() error {
	if b.Scaler == nil {
		return fmt.Errorf("bundle %s has no scaler", b.ID)
	}
	if b.Scaler.Width() != b.FeatureCount {
		return fmt.Errorf("bundle %s scaler width %d != %d", b.ID, b.Scaler.Width(), b.FeatureCount)
	}
	for _, m := range domain.Metrics {
		r := b.Regressor(m)
		if r == nil || len(r.Estimators) == 0 {
			return fmt.Errorf("bundle %s has no %s regressor", b.ID, m)
		}
		if r.Width() != b.FeatureCount {
			return fmt.Errorf("bundle %s %s regressor width %d != %d", b.ID, m, r.Width(), b.FeatureCount)
		}
	}
	return nil
}

// Compatible reports whether the bundle was trained for the feature schema the
// running code produces.
func (b *Bundle) Compatible(schemaVersion string, featureCount int) bool {
	return b != nil &&
		b.SchemaVersion == schemaVersion &&
		b.FeatureCount == featureCount &&
		b.Validate() == nil
}

// Predict runs all three regressors on a standardised vector. Values are raw:
// they may be slightly negative and are not yet clamped.
func (b *Bundle) Predict(x []float64) (domain.ImpactEstimate, error) {
	if len(x) != b.FeatureCount {
		return domain.ImpactEstimate{}, &domain.SchemaMismatchError{
			Schema:   b.SchemaVersion,
			Expected: b.FeatureCount,
			Got:      len(x),
		}
	}
	return domain.ImpactEstimate{
		Carbon: b.Carbon.Predict(x),
		Energy: b.Energy.Predict(x),
		Water:  b.Water.Predict(x),
	}, nil
}

// IsCurrent reports whether the bundle matches the schema of this build.
func (b *Bundle) IsCurrent() bool {
	return b.Compatible(features.SchemaVersion, features.FeatureCount)
}
