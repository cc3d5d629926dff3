package impact

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/metrics"
	"github.com/aristath/ecovest/internal/modules/impact/features"
	"github.com/aristath/ecovest/internal/modules/impact/model"
	"github.com/aristath/ecovest/internal/modules/impact/modelstore"
)

// countingStore wraps a BundleStore and counts calls.
type countingStore struct {
	inner BundleStore
	mu    sync.Mutex
	loads int
	saves int
}

func (s *countingStore) Load(ctx context.Context) (*model.Bundle, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	return s.inner.Load(ctx)
}

func (s *countingStore) Save(ctx context.Context, b *model.Bundle) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.inner.Save(ctx, b)
}

type MockRateWriter struct {
	mock.Mock
}

func (m *MockRateWriter) UpdateImpactRates(ctx context.Context, profileID int64, rates domain.ImpactEstimate) error {
	args := m.Called(ctx, profileID, rates)
	return args.Error(0)
}

func newTestCalculator(t *testing.T, store BundleStore) (*Calculator, *metrics.Registry) {
	t.Helper()
	if store == nil {
		store = modelstore.NewStore(t.TempDir(), zerolog.Nop())
	}
	reg := metrics.NewRegistry()
	encoder := features.NewEncoder()
	trainer := model.NewTrainer(encoder, model.DefaultTrainerConfig(), zerolog.Nop())
	predictor := NewPredictor(store, trainer, model.DefaultCorpus, reg, zerolog.Nop())
	return NewCalculator(encoder, predictor, DefaultJitter(), reg, zerolog.Nop()), reg
}

func profile(categories ...string) domain.ProjectProfile {
	return domain.ProjectProfile{
		Categories:     categories,
		Location:       "Karnataka",
		Technology:     "Manual",
		DurationMonths: 12,
		Scale:          3,
		RiskLevel:      domain.RiskMedium,
	}
}

func TestEstimateImpact_NonNegative(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	ctx := context.Background()

	for _, category := range features.Categories {
		for _, amount := range []float64{1, 1000, 250000} {
			for _, duration := range []int{1, 12, 60} {
				for _, scale := range []int{1, 5, 10} {
					p := profile(category)
					p.DurationMonths = duration
					p.Scale = scale
					est, err := calc.EstimateImpact(ctx, amount, p)
					require.NoError(t, err)
					assert.GreaterOrEqual(t, est.Carbon, 0.0)
					assert.GreaterOrEqual(t, est.Energy, 0.0)
					assert.GreaterOrEqual(t, est.Water, 0.0)
				}
			}
		}
	}
}

func TestEstimateImpact_CategoryZeroes(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	ctx := context.Background()

	for _, amount := range []float64{10, 1000, 1e6} {
		for _, duration := range []int{3, 12, 120} {
			for _, scale := range []int{1, 10} {
				p := profile("Reforestation")
				p.DurationMonths = duration
				p.Scale = scale
				est, err := calc.EstimateImpact(ctx, amount, p, WithoutJitter())
				require.NoError(t, err)
				assert.Equal(t, 0.0, est.Energy)

				for _, c := range []string{"Clean Transportation", "Renewable Energy"} {
					p.Categories = []string{c}
					est, err := calc.EstimateImpact(ctx, amount, p, WithoutJitter())
					require.NoError(t, err)
					assert.Equal(t, 0.0, est.Water, c)
				}
			}
		}
	}
}

func TestEstimateImpact_MonotoneInScale(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	ctx := context.Background()

	for _, category := range features.Categories {
		prev := -1.0
		for scale := domain.MinScale; scale <= domain.MaxScale; scale++ {
			p := profile(category)
			p.Scale = scale
			est, err := calc.EstimateImpact(ctx, 5000, p, WithoutJitter())
			require.NoError(t, err)
			assert.GreaterOrEqual(t, est.Carbon, prev-1e-9, "%s scale %d", category, scale)
			prev = est.Carbon
		}
	}
}

func TestEstimateImpact_Idempotent(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	ctx := context.Background()
	p := profile("Recycling", "Waste Management")

	first, err := calc.EstimateImpact(ctx, 1500, p, WithoutJitter())
	require.NoError(t, err)
	second, err := calc.EstimateImpact(ctx, 1500, p, WithoutJitter())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	seededA, err := calc.EstimateImpact(ctx, 1500, p, WithSeed(99))
	require.NoError(t, err)
	seededB, err := calc.EstimateImpact(ctx, 1500, p, WithSeed(99))
	require.NoError(t, err)
	assert.Equal(t, seededA, seededB)
}

func TestEstimateImpact_ReforestationInAssam(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	ctx := context.Background()

	assamProfile := profile("Reforestation")
	assamProfile.Location = "Assam"
	assam, err := calc.EstimateImpact(ctx, 1000, assamProfile, WithoutJitter())
	require.NoError(t, err)

	karnataka, err := calc.EstimateImpact(ctx, 1000, profile("Reforestation"), WithoutJitter())
	require.NoError(t, err)

	assert.Equal(t, 0.0, assam.Energy)
	assert.Greater(t, assam.Carbon, 0.0)
	assert.Greater(t, assam.Water, 0.0)
	assert.Greater(t, assam.Water, karnataka.Water)
}

func TestEstimateImpact_InvalidAmount(t *testing.T) {
	calc, reg := newTestCalculator(t, nil)
	ctx := context.Background()

	for _, amount := range []float64{0, -10} {
		est, err := calc.EstimateImpact(ctx, amount, profile("Recycling"))
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
		assert.Equal(t, domain.ImpactEstimate{}, est)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Estimates.WithLabelValues("unknown", metrics.OutcomeInvalid)))
}

func TestEstimateImpact_UnknownCategory(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)

	_, err := calc.EstimateImpact(context.Background(), 1000, profile("Space Mining"))
	assert.True(t, domain.IsValidationError(err))
}

func TestEstimateImpact_UnknownLocationUsesFallback(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	ctx := context.Background()

	atlantis := profile("Water Conservation")
	atlantis.Location = "Atlantis"
	got, err := calc.EstimateImpact(ctx, 2500, atlantis, WithoutJitter())
	require.NoError(t, err)

	fallback := profile("Water Conservation")
	fallback.Location = features.FallbackLocation
	want, err := calc.EstimateImpact(ctx, 2500, fallback, WithoutJitter())
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestEstimateImpact_EmptyCategoriesUseDefault(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	ctx := context.Background()

	got, err := calc.EstimateImpact(ctx, 1000, profile(), WithoutJitter())
	require.NoError(t, err)
	want, err := calc.EstimateImpact(ctx, 1000, profile(features.DefaultCategory), WithoutJitter())
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestEstimateImpactForAmount_PersistWritesRates(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	writer := new(MockRateWriter)
	calc.SetRateWriter(writer)
	ctx := context.Background()

	p := profile("Ocean Conservation")
	p.ID = 7
	want, err := calc.EstimateImpactForAmount(ctx, p, PreviewAmount, false, WithSeed(3))
	require.NoError(t, err)

	writer.On("UpdateImpactRates", ctx, int64(7), want).Return(nil)

	got, err := calc.EstimateImpactForAmount(ctx, p, PreviewAmount, true, WithSeed(3))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	writer.AssertExpectations(t)
}

func TestEstimateImpactForAmount_NoWriteWithoutFlagOrCanonicalAmount(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	writer := new(MockRateWriter)
	calc.SetRateWriter(writer)
	ctx := context.Background()
	p := profile("Recycling")
	p.ID = 3

	_, err := calc.Preview(ctx, p)
	require.NoError(t, err)
	_, err = calc.EstimateImpactForAmount(ctx, p, 2000, true)
	require.NoError(t, err)

	writer.AssertNotCalled(t, "UpdateImpactRates", mock.Anything, mock.Anything, mock.Anything)
}

func TestEstimateImpactForAmount_PersistFailure(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	writer := new(MockRateWriter)
	writer.On("UpdateImpactRates", mock.Anything, int64(9), mock.Anything).Return(errors.New("disk full"))
	calc.SetRateWriter(writer)

	p := profile("Recycling")
	p.ID = 9
	_, err := calc.EstimateImpactForAmount(context.Background(), p, PreviewAmount, true)
	assert.ErrorContains(t, err, "disk full")
}

func TestEstimateImpactForAmount_PersistNeedsSavedProject(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	calc.SetRateWriter(new(MockRateWriter))

	_, err := calc.EstimateImpactForAmount(context.Background(), profile("Recycling"), PreviewAmount, true)
	assert.True(t, domain.IsValidationError(err))
}

func TestPredictor_ConcurrentFirstUseTrainsOnce(t *testing.T) {
	store := &countingStore{inner: modelstore.NewStore(t.TempDir(), zerolog.Nop())}
	calc, reg := newTestCalculator(t, store)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := calc.EstimateImpact(context.Background(), 1000, profile("Recycling"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, store.loads)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ModelInits.WithLabelValues(metrics.SourceTrained)))
}

func TestPredictor_LoadsPersistedBundle(t *testing.T) {
	dir := t.TempDir()
	first, _ := newTestCalculator(t, modelstore.NewStore(dir, zerolog.Nop()))
	_, err := first.EstimateImpact(context.Background(), 1000, profile("Recycling"), WithoutJitter())
	require.NoError(t, err)

	store := &countingStore{inner: modelstore.NewStore(dir, zerolog.Nop())}
	second, reg := newTestCalculator(t, store)
	_, err = second.EstimateImpact(context.Background(), 1000, profile("Recycling"), WithoutJitter())
	require.NoError(t, err)

	assert.Equal(t, 0, store.saves)
	assert.Equal(t, first.Predictor().Current().ID, second.Predictor().Current().ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ModelInits.WithLabelValues(metrics.SourceLoaded)))
}

func TestPredictor_RetrainIsDeterministic(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)
	ctx := context.Background()
	p := profile("Green Technology")

	before, err := calc.EstimateImpact(ctx, 1000, p, WithoutJitter())
	require.NoError(t, err)
	oldID := calc.Predictor().Current().ID

	bundle, err := calc.Retrain(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, bundle.ID)

	after, err := calc.EstimateImpact(ctx, 1000, p, WithoutJitter())
	require.NoError(t, err)
	assert.InDelta(t, before.Carbon, after.Carbon, 1e-9)
	assert.InDelta(t, before.Energy, after.Energy, 1e-9)
	assert.InDelta(t, before.Water, after.Water, 1e-9)
}

// staleStore hands out a bundle whose scaler is one feature short, as if it
// had been trained by an older build.
type staleStore struct {
	stale *model.Bundle
	saved []*model.Bundle
}

func (s *staleStore) Load(context.Context) (*model.Bundle, error) {
	if s.stale == nil {
		return nil, domain.ErrBundleNotFound
	}
	b := s.stale
	s.stale = nil
	return b, nil
}

func (s *staleStore) Save(_ context.Context, b *model.Bundle) error {
	s.saved = append(s.saved, b)
	return nil
}

func TestEstimateImpact_SchemaMismatchRetrainsOnce(t *testing.T) {
	corpus, err := model.DefaultCorpus()
	require.NoError(t, err)
	fresh, err := model.NewTrainer(features.NewEncoder(), model.DefaultTrainerConfig(), zerolog.Nop()).Train(corpus)
	require.NoError(t, err)

	stale := *fresh
	stale.ID = "stale"
	stale.Scaler = &model.Scaler{
		Mean:  fresh.Scaler.Mean[:features.FeatureCount-1],
		Scale: fresh.Scaler.Scale[:features.FeatureCount-1],
	}
	store := &staleStore{stale: &stale}
	calc, reg := newTestCalculator(t, store)

	est, err := calc.EstimateImpact(context.Background(), 1000, profile("Recycling"), WithoutJitter())
	require.NoError(t, err)
	assert.Greater(t, est.Carbon, 0.0)
	assert.NotEqual(t, "stale", calc.Predictor().Current().ID)
	assert.Len(t, store.saved, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.SchemaRetrains))
}

func TestPredictor_PredictRejectsWrongWidth(t *testing.T) {
	calc, _ := newTestCalculator(t, nil)

	_, err := calc.Predictor().Predict(context.Background(), make([]float64, features.FeatureCount+2))
	assert.True(t, domain.IsSchemaMismatch(err))
}

type failingStore struct{}

func (failingStore) Load(context.Context) (*model.Bundle, error) {
	return nil, errors.New("permission denied")
}

func (failingStore) Save(context.Context, *model.Bundle) error { return nil }

func TestPredictor_StoreErrorIsNotSwallowed(t *testing.T) {
	calc, reg := newTestCalculator(t, failingStore{})

	est, err := calc.EstimateImpact(context.Background(), 1000, profile("Recycling"))
	require.Error(t, err)
	assert.False(t, domain.IsValidationError(err))
	assert.Equal(t, domain.ImpactEstimate{}, est)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Estimates.WithLabelValues("Recycling", metrics.OutcomeError)))
}

// fixedStore always loads the same bundle.
type fixedStore struct {
	bundle *model.Bundle
}

func (s fixedStore) Load(context.Context) (*model.Bundle, error) { return s.bundle, nil }

func (s fixedStore) Save(context.Context, *model.Bundle) error { return nil }

func expectedPrediction(t *testing.T, b *model.Bundle, raw []float64) domain.ImpactEstimate {
	t.Helper()
	x, err := b.Scaler.Transform(raw)
	require.NoError(t, err)
	est, err := b.Predict(x)
	require.NoError(t, err)
	return est.Map(func(_ domain.Metric, v float64) float64 { return math.Max(0, v) })
}

func TestPredictor_PredictUsesScalerOfSameBundle(t *testing.T) {
	corpus, err := model.DefaultCorpus()
	require.NoError(t, err)
	encoder := features.NewEncoder()
	trainer := model.NewTrainer(encoder, model.DefaultTrainerConfig(), zerolog.Nop())
	fresh, err := trainer.Train(corpus)
	require.NoError(t, err)

	// Same regressors, different scaler: predictions must follow this bundle's scaler.
	shifted := *fresh
	shifted.ID = "shifted"
	shifted.Scaler = &model.Scaler{
		Mean:  append([]float64(nil), fresh.Scaler.Mean...),
		Scale: append([]float64(nil), fresh.Scaler.Scale...),
	}
	shifted.Scaler.Mean[features.FeatureAmount] += 1.5

	predictor := NewPredictor(fixedStore{bundle: &shifted}, trainer, model.DefaultCorpus, nil, zerolog.Nop())
	raw, err := encoder.Raw(features.InputFromProfile(5000, profile("Recycling")))
	require.NoError(t, err)

	got, err := predictor.Predict(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, expectedPrediction(t, &shifted, raw), got)

	retrained, err := predictor.Retrain(context.Background())
	require.NoError(t, err)
	got, err = predictor.Predict(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, expectedPrediction(t, retrained, raw), got)
}
