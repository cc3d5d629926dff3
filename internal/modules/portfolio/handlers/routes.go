package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio/{userID}", func(r chi.Router) {
		r.Get("/", h.HandleGetReport)
		r.Get("/recommendations", h.HandleGetRecommendations)
	})
}
