// Package handlers provides HTTP handlers for initiatives and investments.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/initiatives"
)

// Store is the initiative repository surface used by the handlers
type Store interface {
	Create(ctx context.Context, in *initiatives.Initiative) error
	GetByID(ctx context.Context, id int64) (*initiatives.Initiative, error)
	List(ctx context.Context) ([]initiatives.Initiative, error)
}

// Funding records and reverses investments
type Funding interface {
	Invest(ctx context.Context, userID, initiativeID int64, amount float64) (*domain.Investment, error)
	Withdraw(ctx context.Context, investmentID int64) error
}

// Handler handles initiative HTTP requests
type Handler struct {
	store   Store
	funding Funding
	log     zerolog.Logger
}

// NewHandler creates a new initiatives handler
func NewHandler(store Store, funding Funding, log zerolog.Logger) *Handler {
	return &Handler{
		store:   store,
		funding: funding,
		log:     log.With().Str("handler", "initiatives").Logger(),
	}
}

type initiativeResponse struct {
	initiatives.Initiative
	FundingProgress float64 `json:"funding_progress"`
}

func toResponse(in initiatives.Initiative) initiativeResponse {
	return initiativeResponse{Initiative: in, FundingProgress: in.FundingProgress()}
}

// HandleList returns every initiative
// GET /api/initiatives
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	result := make([]initiativeResponse, 0, len(list))
	for _, in := range list {
		result = append(result, toResponse(in))
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGet returns one initiative
// GET /api/initiatives/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	in, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(*in))
}

// HandleCreate stores a new initiative
// POST /api/initiatives
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in initiatives.Initiative
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.ID = 0
	in.CurrentAmount = 0
	in.Rates = nil
	in.RatesUpdatedAt = nil

	if err := h.store.Create(r.Context(), &in); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toResponse(in))
}

type investRequest struct {
	UserID int64   `json:"user_id"`
	Amount float64 `json:"amount"`
}

// HandleInvest records an investment in an initiative
// POST /api/initiatives/{id}/investments
func (h *Handler) HandleInvest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var req investRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inv, err := h.funding.Invest(r.Context(), req.UserID, id, req.Amount)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	inv.Profile = nil
	h.writeJSON(w, http.StatusCreated, inv)
}

// HandleWithdraw deletes an investment
// DELETE /api/investments/{id}
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.funding.Withdraw(r.Context(), id); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, initiatives.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Not found")
	default:
		h.log.Error().Err(err).Msg("Initiative request failed")
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
