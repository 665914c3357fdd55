package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all IBKR inbox routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ibkr", func(r chi.Router) {
		r.Route("/inbox", func(r chi.Router) {
			r.Get("/", h.HandleListInbox)
			r.Get("/allocation-form", h.HandleAllocationForm)
			r.Post("/bulk-allocate", h.HandleBulkAllocate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/eligible-portfolios", h.HandleEligiblePortfolios)
				r.Get("/allocations", h.HandleAllocations)
				r.Put("/allocations", h.HandleModifyAllocations)
				r.Post("/allocate", h.HandleAllocate)
				r.Post("/unallocate", h.HandleUnallocate)
				r.Post("/ignore", h.HandleIgnore)
				r.Delete("/", h.HandleDelete)
			})
		})
		r.Post("/flex/import", h.HandleFlexImport)
		r.Get("/allocation-presets", h.HandleGetPresets)
		r.Put("/allocation-presets", h.HandleSavePresets)
	})
}
