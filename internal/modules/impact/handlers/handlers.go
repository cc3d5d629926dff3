// Package handlers provides HTTP handlers for impact estimation and model management.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact"
	"github.com/aristath/ecovest/internal/modules/impact/model"
	"github.com/aristath/ecovest/internal/modules/initiatives"
)

// Calculator is the part of the impact facade the handlers use
type Calculator interface {
	EstimateImpactForAmount(ctx context.Context, profile domain.ProjectProfile, amount float64, persist bool, opts ...impact.EstimateOption) (domain.ImpactEstimate, error)
	Retrain(ctx context.Context) (*model.Bundle, error)
}

// InitiativeGetter loads a stored initiative
type InitiativeGetter interface {
	GetByID(ctx context.Context, id int64) (*initiatives.Initiative, error)
}

// Handler handles impact HTTP requests
type Handler struct {
	calculator  Calculator
	initiatives InitiativeGetter
	log         zerolog.Logger
}

// NewHandler creates a new impact handler
func NewHandler(calculator Calculator, initiativeGetter InitiativeGetter, log zerolog.Logger) *Handler {
	return &Handler{
		calculator:  calculator,
		initiatives: initiativeGetter,
		log:         log.With().Str("handler", "impact").Logger(),
	}
}

// EstimateRequest is the body of POST /impact/estimate. Amount accepts either
// a JSON number or a currency string such as "₹1,000".
type EstimateRequest struct {
	Amount       json.RawMessage        `json:"amount"`
	Profile      *domain.ProjectProfile `json:"profile,omitempty"`
	InitiativeID int64                  `json:"initiative_id,omitempty"`
	Persist      bool                   `json:"persist,omitempty"`
	Seed         *uint64                `json:"seed,omitempty"`
	NoJitter     bool                   `json:"no_jitter,omitempty"`
}

// EstimateResponse carries an estimate together with what it was computed for
type EstimateResponse struct {
	Amount       float64               `json:"amount"`
	InitiativeID int64                 `json:"initiative_id,omitempty"`
	Impact       domain.ImpactEstimate `json:"impact"`
	Persisted    bool                  `json:"persisted"`
}

// HandleEstimate computes an impact estimate for an amount and a profile
// POST /api/impact/estimate
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var profile domain.ProjectProfile
	switch {
	case req.InitiativeID != 0:
		initiative, err := h.initiatives.GetByID(r.Context(), req.InitiativeID)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		profile = initiative.Profile
	case req.Profile != nil:
		profile = *req.Profile
	default:
		h.writeError(w, http.StatusBadRequest, "Either profile or initiative_id is required")
		return
	}

	var opts []impact.EstimateOption
	if req.Seed != nil {
		opts = append(opts, impact.WithSeed(*req.Seed))
	}
	if req.NoJitter {
		opts = append(opts, impact.WithoutJitter())
	}

	est, err := h.calculator.EstimateImpactForAmount(r.Context(), profile, amount, req.Persist, opts...)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, EstimateResponse{
		Amount:       amount,
		InitiativeID: profile.ID,
		Impact:       est,
		Persisted:    req.Persist && amount == impact.PreviewAmount,
	})
}

// HandlePreview returns the per-1000 impact of a stored initiative. The
// preview is seeded by the initiative ID so repeated calls agree.
// GET /api/impact/preview/{initiativeID}?persist=true
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "initiativeID"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid initiative ID")
		return
	}
	persist, _ := strconv.ParseBool(r.URL.Query().Get("persist"))

	initiative, err := h.initiatives.GetByID(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	est, err := h.calculator.EstimateImpactForAmount(r.Context(), initiative.Profile, impact.PreviewAmount, persist, impact.WithSeed(uint64(id)))
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, EstimateResponse{
		Amount:       impact.PreviewAmount,
		InitiativeID: id,
		Impact:       est,
		Persisted:    persist,
	})
}

// HandleRetrain retrains the model bundle from the seed corpus and persists it
// POST /api/model/retrain
func (h *Handler) HandleRetrain(w http.ResponseWriter, r *http.Request) {
	h.log.Info().Msg("Model retrain triggered via API")

	b, err := h.calculator.Retrain(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, BundleInfo(b))
}

// BundleInfo summarises a model bundle for API responses
func BundleInfo(b *model.Bundle) map[string]interface{} {
	if b == nil {
		return map[string]interface{}{"loaded": false}
	}
	return map[string]interface{}{
		"loaded":         true,
		"bundle_id":      b.ID,
		"schema_version": b.SchemaVersion,
		"feature_count":  b.FeatureCount,
		"corpus_version": b.CorpusVersion,
		"trained_at":     b.TrainedAt.UTC().Format(time.RFC3339),
		"current":        b.IsCurrent(),
	}
}

func parseAmount(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, domain.NewValidationError("amount", "is required")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, domain.NewValidationError("amount", "is not a string or number")
		}
	}
	amount, err := domain.ParseAmount(text)
	if err != nil {
		return 0, err
	}
	return amount.InexactFloat64(), nil
}

// writeFailure maps an error to a status code. Only validation messages are
// echoed back to the caller.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, initiatives.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Initiative not found")
	default:
		h.log.Error().Err(err).Msg("Impact request failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
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
