package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/initiatives"
	"github.com/aristath/ecovest/internal/modules/portfolio"
	testingpkg "github.com/aristath/ecovest/internal/testing"
)

type stubLister struct {
	byUser  map[int64][]domain.Investment
	rowErrs []initiatives.RowError
	err     error
}

func (s *stubLister) ListInvestmentsByUser(_ context.Context, userID int64) ([]domain.Investment, []initiatives.RowError, error) {
	return s.byUser[userID], s.rowErrs, s.err
}

func holdingsFixture() []domain.Investment {
	profiles := testingpkg.NewProfileFixtures()
	return []domain.Investment{
		{ID: 1, UserID: 5, InitiativeID: 10, Amount: 7000, Impact: domain.ImpactEstimate{Carbon: 70}, Profile: &profiles[0]},
		{ID: 2, UserID: 5, InitiativeID: 11, Amount: 3000, Impact: domain.ImpactEstimate{Energy: 30}, Profile: &profiles[1]},
		{ID: 3, UserID: 5, InitiativeID: 12, Amount: 500, Profile: nil},
	}
}

func serve(t *testing.T, lister InvestmentLister, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(lister, portfolio.NewAnalyzer(nil, zerolog.Nop()), zerolog.Nop()).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleGetReport(t *testing.T) {
	lister := &stubLister{
		byUser:  map[int64][]domain.Investment{5: holdingsFixture()},
		rowErrs: []initiatives.RowError{{ID: 3, Err: fmt.Errorf("initiative 12: %w", initiatives.ErrNotFound)}},
	}

	rec := serve(t, lister, "/portfolio/5/")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10000.0, resp.TotalInvested)
	assert.Equal(t, "₹10,000.00", resp.TotalInvestedDisplay)
	assert.Equal(t, 70.0, resp.TotalImpact.Carbon)
	assert.Equal(t, 30.0, resp.TotalImpact.Energy)
	assert.Equal(t, []int64{3}, resp.SkippedInvestmentIDs)
	assert.Len(t, resp.Holdings, 2)
	assert.InDelta(t, 60.0, resp.DiversificationScore, 1e-9)
}

func TestHandleGetReport_EmptyPortfolio(t *testing.T) {
	rec := serve(t, &stubLister{}, "/portfolio/9/")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.0, resp["total_invested"])
	assert.Equal(t, string(portfolio.RiskLabelLow), resp["risk_label"])
	assert.Equal(t, []interface{}{}, resp["skipped_investment_ids"])
}

func TestHandleGetRecommendations(t *testing.T) {
	lister := &stubLister{byUser: map[int64][]domain.Investment{5: holdingsFixture()}}

	rec := serve(t, lister, "/portfolio/5/recommendations")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp portfolio.Diversification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 70.0, resp.CategoryDistribution["Reforestation"], 1e-9)
	require.NotEmpty(t, resp.Recommendations)
	assert.Equal(t, portfolio.RecommendationCategory, resp.Recommendations[0].Type)
	assert.Equal(t, "Reforestation", resp.Recommendations[0].Subject)
	assert.Equal(t, portfolio.SeverityHigh, resp.Recommendations[0].Severity)
}

func TestHandleGetRecommendations_Empty(t *testing.T) {
	rec := serve(t, &stubLister{}, "/portfolio/9/recommendations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recommendations":[]`)
}

func TestHandlers_BadUserAndStoreFailure(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, serve(t, &stubLister{}, "/portfolio/abc/").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, &stubLister{}, "/portfolio/-1/recommendations").Code)

	rec := serve(t, &stubLister{err: errors.New("database is locked")}, "/portfolio/5/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}
