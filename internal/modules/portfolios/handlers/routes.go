package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Post("/{id}/archive", h.HandleArchive)
		r.Get("/{id}/summary", h.HandleGetSummary)
		r.Get("/{id}/funds", h.HandleListFunds)
		r.Post("/{id}/funds", h.HandleAddFund)
		r.Delete("/{id}/funds/{fundId}", h.HandleRemoveFund)
	})
}
