package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/ecovest/internal/config"
	"github.com/aristath/ecovest/internal/di"
	"github.com/aristath/ecovest/internal/modules/impact"
	"github.com/aristath/ecovest/internal/modules/initiatives"
	testingpkg "github.com/aristath/ecovest/internal/testing"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := &config.Config{
		DataDir:         tmpDir,
		ModelDir:        filepath.Join(tmpDir, "models"),
		DBPath:          filepath.Join(tmpDir, "ecovest.db"),
		Port:            8080,
		JitterEnabled:   true,
		JitterAmplitude: impact.DefaultJitterAmplitude,
		CORSOrigins:     []string{"*"},
	}

	container, jobs, err := di.Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Scheduler.Stop()
		container.Close()
	})

	s := New(Config{
		Log:       zerolog.Nop(),
		Port:      cfg.Port,
		DevMode:   true,
		ModelDir:  cfg.ModelDir,
		Container: container,
		Jobs:      jobs,
	})
	return s, container
}

func request(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := request(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "ecovest", resp["service"])
}

func TestEstimateThroughServer(t *testing.T) {
	s, container := newTestServer(t)

	body := `{"amount":"₹5,000","profile":{"categories":["Renewable Energy"],"location":"Gujarat","technology":"Solar","duration_months":24,"scale":6,"risk_level":"medium"},"seed":7}`
	rec := request(t, s, http.MethodPost, "/api/impact/estimate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Amount float64 `json:"amount"`
		Impact struct {
			Carbon float64 `json:"carbon"`
			Energy float64 `json:"energy"`
			Water  float64 `json:"water"`
		} `json:"impact"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5000.0, resp.Amount)
	assert.Zero(t, resp.Impact.Water)
	assert.GreaterOrEqual(t, resp.Impact.Energy, 0.0)

	assert.Equal(t, 1.0, testutil.ToFloat64(container.Metrics.Estimates.WithLabelValues("Renewable Energy", "ok")))
}

func TestEstimateValidationError(t *testing.T) {
	s, _ := newTestServer(t)

	rec := request(t, s, http.MethodPost, "/api/impact/estimate", `{"amount":100,"profile":{"categories":["Mining"],"duration_months":12,"scale":3}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioThroughServer(t *testing.T) {
	s, container := newTestServer(t)
	ctx := context.Background()

	in := &initiatives.Initiative{Title: "Forest", Profile: testingpkg.NewProfileFixtures()[0], GoalAmount: 20000}
	require.NoError(t, container.InitiativeRepo.Create(ctx, in))
	_, err := container.InitiativeService.Invest(ctx, 4, in.ID, 1500)
	require.NoError(t, err)

	rec := request(t, s, http.MethodGet, "/api/portfolio/4", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total_invested":1500`)

	rec = request(t, s, http.MethodGet, "/api/portfolio/4/recommendations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "category_diversification")
}

func TestSystemStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rec := request(t, s, http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotNil(t, resp.Database)
	assert.Equal(t, false, resp.Model["loaded"])
	assert.Equal(t, []string{"check_wal_checkpoints", "refresh_impact_metrics"}, resp.Jobs)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := request(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTriggerJob(t *testing.T) {
	s, container := newTestServer(t)

	rec := request(t, s, http.MethodPost, "/api/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(t, s, http.MethodPost, "/api/jobs/check_wal_checkpoints", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(container.Metrics.JobRuns.WithLabelValues("check_wal_checkpoints", "success")) == 1
	}, 5*time.Second, 20*time.Millisecond)

	container.Scheduler.Stop()
	rec = request(t, s, http.MethodPost, "/api/jobs/check_wal_checkpoints", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
