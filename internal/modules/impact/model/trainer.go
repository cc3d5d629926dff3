package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact/features"
	"github.com/aristath/ecovest/internal/utils"
)

// TrainerConfig controls how bundles are fitted.
type TrainerConfig struct {
	Estimators int
	Lambda     float64
	Seed       uint64
}

// DefaultTrainerConfig mirrors the settings the shipped bundles are built with.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Estimators: 25,
		Lambda:     1.0,
		Seed:       42,
	}
}

// Trainer fits model bundles from a corpus.
type Trainer struct {
	encoder *features.Encoder
	cfg     TrainerConfig
	log     zerolog.Logger
}

// NewTrainer creates a trainer. The encoder is only used for raw vectors, so it
// does not need a fitted scaler.
func NewTrainer(encoder *features.Encoder, cfg TrainerConfig, log zerolog.Logger) *Trainer {
	return &Trainer{
		encoder: encoder,
		cfg:     cfg,
		log:     log.With().Str("component", "impact_trainer").Logger(),
	}
}

// Train fits the scaler and the three regressors as one bundle.
func (t *Trainer) Train(corpus *Corpus) (*Bundle, error) {
	if corpus == nil {
		return nil, fmt.Errorf("no corpus to train on")
	}
	stop := utils.OperationTimer("train_bundle", 30*time.Second, t.log)

	raw := make([][]float64, 0, len(corpus.Records))
	for i, r := range corpus.Records {
		x, err := t.encoder.Raw(r.Input())
		if err != nil {
			return nil, fmt.Errorf("failed to encode corpus record %d: %w", i, err)
		}
		raw = append(raw, x)
	}

	scaler, err := FitScaler(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	scaled := make([][]float64, len(raw))
	for i, x := range raw {
		if scaled[i], err = scaler.Transform(x); err != nil {
			return nil, err
		}
	}

	ridge := RidgeConfig{
		Estimators: t.cfg.Estimators,
		Lambda:     t.cfg.Lambda,
		Seed:       t.cfg.Seed,
		Monotone:   features.MonotoneFeatures,
	}

	bundle := &Bundle{
		ID:            uuid.NewString(),
		SchemaVersion: features.SchemaVersion,
		FeatureCount:  features.FeatureCount,
		CorpusVersion: corpus.Version,
		TrainedAt:     time.Now().UTC(),
		Scaler:        scaler,
	}

	targets := make([]float64, len(corpus.Records))
	for _, m := range domain.Metrics {
		for i, r := range corpus.Records {
			targets[i] = r.Impact.Get(m)
		}
		reg, err := FitRegressor(string(m), scaled, targets, ridge)
		if err != nil {
			return nil, fmt.Errorf("failed to fit %s regressor: %w", m, err)
		}
		switch m {
		case domain.MetricCarbon:
			bundle.Carbon = reg
		case domain.MetricEnergy:
			bundle.Energy = reg
		case domain.MetricWater:
			bundle.Water = reg
		}
	}

	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("trained bundle is inconsistent: %w", err)
	}

	t.log.Info().
		Str("bundle_id", bundle.ID).
		Str("corpus_version", corpus.Version).
		Int("records", len(corpus.Records)).
		Dur("duration", stop()).
		Msg("Trained impact model bundle")

	return bundle, nil
}
