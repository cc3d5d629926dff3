package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact"
)

// MockImpactEstimator is a testify mock of the impact calculator.
type MockImpactEstimator struct {
	mock.Mock
}

// EstimateImpact records the call and returns the configured result.
func (m *MockImpactEstimator) EstimateImpact(ctx context.Context, amount float64, profile domain.ProjectProfile, opts ...impact.EstimateOption) (domain.ImpactEstimate, error) {
	args := m.Called(ctx, amount, profile)
	return args.Get(0).(domain.ImpactEstimate), args.Error(1)
}
