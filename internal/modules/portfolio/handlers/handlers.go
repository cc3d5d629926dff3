// Package handlers provides HTTP handlers for portfolio analysis.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/initiatives"
	"github.com/aristath/ecovest/internal/modules/portfolio"
)

// InvestmentLister loads a user's investments with their project profiles
type InvestmentLister interface {
	ListInvestmentsByUser(ctx context.Context, userID int64) ([]domain.Investment, []initiatives.RowError, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	investments InvestmentLister
	analyzer    *portfolio.Analyzer
	log         zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(investments InvestmentLister, analyzer *portfolio.Analyzer, log zerolog.Logger) *Handler {
	return &Handler{
		investments: investments,
		analyzer:    analyzer,
		log:         log.With().Str("handler", "portfolio").Logger(),
	}
}

// ReportResponse is a portfolio report with display-formatted totals
type ReportResponse struct {
	portfolio.Report
	TotalInvestedDisplay string `json:"total_invested_display"`
}

// HandleGetReport returns totals, risk and diversification for a user
// GET /api/portfolio/{userID}
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	investments, ok := h.load(w, r)
	if !ok {
		return
	}

	report := h.analyzer.Analyze(investments)
	h.writeJSON(w, http.StatusOK, ReportResponse{
		Report:               report,
		TotalInvestedDisplay: domain.FormatAmount(report.TotalInvested),
	})
}

// HandleGetRecommendations returns allocation shares and diversification advice
// GET /api/portfolio/{userID}/recommendations
func (h *Handler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	investments, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.analyzer.Recommendations(investments))
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) ([]domain.Investment, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return nil, false
	}

	investments, rowErrs, err := h.investments.ListInvestmentsByUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to load investments")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if len(rowErrs) > 0 {
		h.log.Debug().Int64("user_id", userID).Int("malformed_rows", len(rowErrs)).Msg("Portfolio contains unusable investments")
	}
	return investments, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
