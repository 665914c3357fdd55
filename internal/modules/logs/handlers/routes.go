package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all log routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/logs", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/cleanup", h.HandleCleanup)
	})
}
