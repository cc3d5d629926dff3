package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/config"
	"github.com/aristath/ecovest/internal/metrics"
	"github.com/aristath/ecovest/internal/modules/impact"
	"github.com/aristath/ecovest/internal/modules/impact/features"
	"github.com/aristath/ecovest/internal/modules/impact/model"
	"github.com/aristath/ecovest/internal/modules/impact/modelstore"
	"github.com/aristath/ecovest/internal/modules/initiatives"
	"github.com/aristath/ecovest/internal/modules/portfolio"
)

// InitializeServices builds the impact engine and the services that use it.
// Nothing is trained or loaded here; the predictor initialises on first use.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Metrics = metrics.NewRegistry()

	store := modelstore.NewStore(cfg.ModelDir, log)
	if cfg.Mirror != nil {
		mirror, err := modelstore.NewS3Mirror(ctx, modelstore.S3Config{
			Bucket:          cfg.Mirror.Bucket,
			Prefix:          cfg.Mirror.Prefix,
			Region:          cfg.Mirror.Region,
			Endpoint:        cfg.Mirror.Endpoint,
			AccessKeyID:     cfg.Mirror.AccessKeyID,
			SecretAccessKey: cfg.Mirror.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create model mirror: %w", err)
		}
		store.SetMirror(mirror)
	}
	container.ModelStore = store

	corpus := impact.CorpusSource(model.DefaultCorpus)
	if cfg.CorpusPath != "" {
		path := cfg.CorpusPath
		corpus = func() (*model.Corpus, error) { return model.LoadCorpus(path) }
	}

	container.Encoder = features.NewEncoder()
	trainer := model.NewTrainer(container.Encoder, model.DefaultTrainerConfig(), log)
	container.Predictor = impact.NewPredictor(store, trainer, corpus, container.Metrics, log)

	container.Calculator = impact.NewCalculator(container.Encoder, container.Predictor, cfg.Jitter(), container.Metrics, log)
	container.Calculator.SetRateWriter(container.InitiativeRepo)

	container.InitiativeService = initiatives.NewService(container.InitiativeRepo, container.Calculator, log)
	container.PortfolioAnalyzer = portfolio.NewAnalyzer(container.Metrics, log)

	return nil
}
