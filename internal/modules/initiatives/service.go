package initiatives

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact"
)

// ImpactEstimator computes the impact of an amount in a project.
type ImpactEstimator interface {
	EstimateImpact(ctx context.Context, amount float64, profile domain.ProjectProfile, opts ...impact.EstimateOption) (domain.ImpactEstimate, error)
}

// Service handles funding operations that need the impact engine.
type Service struct {
	repo      *Repository
	estimator ImpactEstimator
	log       zerolog.Logger
}

// NewService creates a service.
func NewService(repo *Repository, estimator ImpactEstimator, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		estimator: estimator,
		log:       log.With().Str("service", "initiatives").Logger(),
	}
}

// Invest records an investment. Its impact is computed once here and cached
// on the investment; it is not recomputed when the model changes.
func (s *Service) Invest(ctx context.Context, userID, initiativeID int64, amount float64) (*domain.Investment, error) {
	if userID <= 0 {
		return nil, domain.NewValidationError("user_id", "must be positive")
	}
	initiative, err := s.repo.GetByID(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckInvestmentBounds(amount, initiative.Profile); err != nil {
		return nil, err
	}

	est, err := s.estimator.EstimateImpact(ctx, amount, initiative.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate impact: %w", err)
	}

	inv := &domain.Investment{
		UserID:       userID,
		InitiativeID: initiativeID,
		Amount:       amount,
		Impact:       est,
		Profile:      &initiative.Profile,
	}
	if err := s.repo.InsertInvestment(ctx, inv); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("investment_id", inv.ID).
		Int64("user_id", userID).
		Int64("initiative_id", initiativeID).
		Float64("amount", amount).
		Msg("Recorded investment")
	return inv, nil
}

// Withdraw deletes an investment and reverses its funding.
func (s *Service) Withdraw(ctx context.Context, investmentID int64) error {
	if err := s.repo.DeleteInvestment(ctx, investmentID); err != nil {
		return err
	}
	s.log.Info().Int64("investment_id", investmentID).Msg("Withdrew investment")
	return nil
}
