package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers initiative and investment routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/initiatives", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/investments", h.HandleInvest)
	})

	r.Delete("/investments/{id}", h.HandleWithdraw)
}
