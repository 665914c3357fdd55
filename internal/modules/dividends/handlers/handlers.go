// Package handlers provides HTTP handlers for dividend management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/modules/dividends"
)

// Handler handles dividend HTTP requests
type Handler struct {
	repo *dividends.Repository
	log  zerolog.Logger
}

// NewHandler creates a new dividend handler
func NewHandler(repo *dividends.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "dividends").Logger(),
	}
}

// HandleList returns dividends, optionally filtered by ?portfolioId=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.URL.Query().Get("portfolioId"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []dividends.Dividend{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleGet returns a single dividend
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.repo.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d == nil {
		h.writeError(w, http.StatusNotFound, "dividend not found")
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// HandleCreate records a new dividend
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var d dividends.Dividend
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if d.PortfolioID == "" || d.FundID == "" || d.RecordDate == "" {
		h.writeError(w, http.StatusBadRequest, "portfolioId, fundId and recordDate are required")
		return
	}

	created, err := h.repo.Create(d)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate modifies an existing dividend
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var d dividends.Dividend
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	d.ID = chi.URLParam(r, "id")

	if err := h.repo.Update(d); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// HandleDelete removes a dividend
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(chi.URLParam(r, "id")); err != nil {
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
