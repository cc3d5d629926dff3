package impact

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/metrics"
	"github.com/aristath/ecovest/internal/modules/impact/model"
)

// BundleStore persists model bundles. Load returns an error wrapping
// domain.ErrBundleNotFound when there is nothing usable.
type BundleStore interface {
	Load(ctx context.Context) (*model.Bundle, error)
	Save(ctx context.Context, bundle *model.Bundle) error
}

// CorpusSource supplies the seed corpus for training.
type CorpusSource func() (*model.Corpus, error)

// Predictor owns the process-wide model bundle. The bundle is loaded or
// trained at most once, on first use, and is immutable afterwards; a retrain
// swaps in a new bundle atomically.
type Predictor struct {
	store   BundleStore
	trainer *model.Trainer
	corpus  CorpusSource
	metrics *metrics.Registry
	log     zerolog.Logger

	mu     sync.Mutex
	bundle atomic.Pointer[model.Bundle]
}

// NewPredictor creates a predictor. Nothing is loaded until first use.
func NewPredictor(
	store BundleStore,
	trainer *model.Trainer,
	corpus CorpusSource,
	reg *metrics.Registry,
	log zerolog.Logger,
) *Predictor {
	return &Predictor{
		store:   store,
		trainer: trainer,
		corpus:  corpus,
		metrics: reg,
		log:     log.With().Str("component", "impact_predictor").Logger(),
	}
}

// Current returns the active bundle, or nil before initialisation.
func (p *Predictor) Current() *model.Bundle {
	return p.bundle.Load()
}

// Ensure returns the active bundle, loading it from the store or training it
// from the seed corpus on first call. Concurrent first calls block on a single
// initialisation.
func (p *Predictor) Ensure(ctx context.Context) (*model.Bundle, error) {
	if b := p.bundle.Load(); b != nil {
		return b, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if b := p.bundle.Load(); b != nil {
		return b, nil
	}

	b, err := p.store.Load(ctx)
	switch {
	case err == nil:
		p.activate(b, metrics.SourceLoaded)
		return b, nil
	case errors.Is(err, domain.ErrBundleNotFound):
		p.log.Info().Err(err).Msg("No persisted bundle, training from seed corpus")
		return p.trainLocked(ctx, metrics.SourceTrained, false)
	default:
		return nil, fmt.Errorf("failed to load model bundle: %w", err)
	}
}

// Predict standardises a raw feature vector with the active bundle's scaler,
// runs that same bundle's regressors and clamps the result at zero. A vector
// of the wrong width yields a SchemaMismatchError.
func (p *Predictor) Predict(ctx context.Context, raw []float64) (domain.ImpactEstimate, error) {
	b, err := p.Ensure(ctx)
	if err != nil {
		return domain.ImpactEstimate{}, err
	}
	x, err := b.Scaler.Transform(raw)
	if err != nil {
		return domain.ImpactEstimate{}, err
	}
	est, err := b.Predict(x)
	if err != nil {
		return domain.ImpactEstimate{}, err
	}
	return est.Map(func(_ domain.Metric, v float64) float64 {
		return math.Max(0, v)
	}), nil
}

// Retrain trains a new bundle from the seed corpus and persists it. Save
// failures are returned: an operator asked for this.
func (p *Predictor) Retrain(ctx context.Context) (*model.Bundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trainLocked(ctx, metrics.SourceRetrain, true)
}

// RetrainStale retrains only if staleID is still the active bundle, so a burst
// of schema mismatches causes one retrain rather than one per request.
func (p *Predictor) RetrainStale(ctx context.Context, staleID string) (*model.Bundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b := p.bundle.Load(); b != nil && b.ID != staleID {
		return b, nil
	}
	p.metrics.RecordSchemaRetrain()
	p.log.Warn().Str("bundle_id", staleID).Msg("Retraining after schema mismatch")
	return p.trainLocked(ctx, metrics.SourceRetrain, true)
}

func (p *Predictor) trainLocked(ctx context.Context, source string, mustPersist bool) (*model.Bundle, error) {
	corpus, err := p.corpus()
	if err != nil {
		return nil, fmt.Errorf("failed to load seed corpus: %w", err)
	}
	b, err := p.trainer.Train(corpus)
	if err != nil {
		return nil, fmt.Errorf("failed to train model bundle: %w", err)
	}

	if err := p.store.Save(ctx, b); err != nil {
		if mustPersist {
			return nil, fmt.Errorf("failed to persist model bundle: %w", err)
		}
		p.log.Error().Err(err).Str("bundle_id", b.ID).Msg("Failed to persist trained bundle, serving from memory")
	}

	p.activate(b, source)
	return b, nil
}

func (p *Predictor) activate(b *model.Bundle, source string) {
	p.bundle.Store(b)
	p.metrics.RecordModelInit(source, b.TrainedAt)
	p.log.Info().
		Str("bundle_id", b.ID).
		Str("source", source).
		Str("schema", b.SchemaVersion).
		Str("corpus_version", b.CorpusVersion).
		Time("trained_at", b.TrainedAt).
		Msg("Model bundle active")
}
