package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/initiatives"
	testingpkg "github.com/aristath/ecovest/internal/testing"
)

type fixture struct {
	router    *chi.Mux
	repo      *initiatives.Repository
	estimator *testingpkg.MockImpactEstimator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t)
	t.Cleanup(cleanup)

	repo := initiatives.NewRepository(db.Conn(), zerolog.Nop())
	estimator := new(testingpkg.MockImpactEstimator)
	service := initiatives.NewService(repo, estimator, zerolog.Nop())

	r := chi.NewRouter()
	NewHandler(repo, service, zerolog.Nop()).RegisterRoutes(r)
	return &fixture{router: r, repo: repo, estimator: estimator}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T, idx int) *initiatives.Initiative {
	t.Helper()
	in := &initiatives.Initiative{
		Title:      "Seeded",
		Profile:    testingpkg.NewProfileFixtures()[idx],
		GoalAmount: 10000,
	}
	require.NoError(t, f.repo.Create(context.Background(), in))
	return in
}

func TestCreateAndGet(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/initiatives/", map[string]interface{}{
		"title":       "Mangroves",
		"goal_amount": 50000,
		"profile": map[string]interface{}{
			"categories":      []string{"ocean conservation"},
			"location":        "Goa",
			"duration_months": 24,
			"scale":           4,
			"risk_level":      "high",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created initiatives.Initiative
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	assert.Equal(t, []string{"Ocean Conservation"}, created.Profile.Categories)

	rec = f.do(t, http.MethodGet, "/initiatives/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Mangroves", got["title"])
	assert.Equal(t, 0.0, got["funding_progress"])
}

func TestCreate_Invalid(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/initiatives/", map[string]interface{}{
		"title":   "Mine",
		"profile": map[string]interface{}{"categories": []string{"Mining"}, "duration_months": 12, "scale": 3},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestList(t *testing.T) {
	f := setup(t)
	f.seed(t, 0)
	f.seed(t, 2)

	rec := f.do(t, http.MethodGet, "/initiatives/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestGet_NotFoundAndBadID(t *testing.T) {
	f := setup(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/initiatives/42", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/initiatives/x", nil).Code)
}

func TestInvestAndWithdraw(t *testing.T) {
	f := setup(t)
	in := f.seed(t, 0)
	est := domain.ImpactEstimate{Carbon: 10, Energy: 0, Water: 25}
	f.estimator.On("EstimateImpact", mock.Anything, 2000.0, mock.Anything).Return(est, nil).Once()

	rec := f.do(t, http.MethodPost, "/initiatives/"+itoa(in.ID)+"/investments", map[string]interface{}{
		"user_id": 3,
		"amount":  2000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var inv domain.Investment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, est, inv.Impact)
	assert.Nil(t, inv.Profile)

	stored, err := f.repo.GetByID(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, stored.CurrentAmount)

	rec = f.do(t, http.MethodDelete, "/investments/"+itoa(inv.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	stored, err = f.repo.GetByID(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stored.CurrentAmount)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/investments/"+itoa(inv.ID), nil).Code)
	f.estimator.AssertExpectations(t)
}

func TestInvest_BelowMinimum(t *testing.T) {
	f := setup(t)
	in := f.seed(t, 0)

	rec := f.do(t, http.MethodPost, "/initiatives/"+itoa(in.ID)+"/investments", map[string]interface{}{
		"user_id": 3,
		"amount":  100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.estimator.AssertNotCalled(t, "EstimateImpact")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
