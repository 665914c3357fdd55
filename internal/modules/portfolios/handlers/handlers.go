// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/modules/portfolios"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	repo    *portfolios.Repository
	service *portfolios.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(repo *portfolios.Repository, service *portfolios.Service, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		log:     log.With().Str("handler", "portfolios").Logger(),
	}
}

// HandleList returns portfolios; ?archived=true includes archived ones
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("archived") == "true"
	list, err := h.repo.List(includeArchived)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []portfolios.Portfolio{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleGet returns a single portfolio
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleCreate creates a new portfolio
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var p portfolios.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Name == "" {
		h.writeError(w, http.StatusBadRequest, "portfolio name is required")
		return
	}

	created, err := h.repo.Create(p)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate modifies an existing portfolio
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var p portfolios.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.ID = chi.URLParam(r, "id")

	if err := h.repo.Update(p); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a portfolio
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleArchive archives or unarchives a portfolio
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Archived bool `json:"archived"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.SetArchived(chi.URLParam(r, "id"), req.Archived); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGetSummary returns the portfolio valuation summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleListFunds returns fund IDs linked to a portfolio
func (h *Handler) HandleListFunds(w http.ResponseWriter, r *http.Request) {
	ids, err := h.repo.FundIDs(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"fundIds": ids})
}

// HandleAddFund links a fund to a portfolio
func (h *Handler) HandleAddFund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FundID string `json:"fundId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FundID == "" {
		h.writeError(w, http.StatusBadRequest, "fundId is required")
		return
	}

	if err := h.repo.AddFund(chi.URLParam(r, "id"), req.FundID); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleRemoveFund unlinks a fund from a portfolio
func (h *Handler) HandleRemoveFund(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.RemoveFund(chi.URLParam(r, "id"), chi.URLParam(r, "fundId")); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
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
