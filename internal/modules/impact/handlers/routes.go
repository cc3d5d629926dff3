package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers impact and model routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/impact", func(r chi.Router) {
		r.Post("/estimate", h.HandleEstimate)
		r.Get("/preview/{initiativeID}", h.HandlePreview)
	})

	r.Post("/model/retrain", h.HandleRetrain)
}
