// Package handlers provides HTTP handlers for fund management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/modules/funds"
)

// Handler handles fund HTTP requests
type Handler struct {
	repo *funds.Repository
	log  zerolog.Logger
}

// NewHandler creates a new fund handler
func NewHandler(repo *funds.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "funds").Logger(),
	}
}

// HandleList returns all funds
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []funds.Fund{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleGet returns a single fund by ID
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	fund, err := h.repo.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if fund == nil {
		h.writeError(w, http.StatusNotFound, "fund not found")
		return
	}
	h.writeJSON(w, http.StatusOK, fund)
}

// HandleCreate creates a new fund
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var fund funds.Fund
	if err := json.NewDecoder(r.Body).Decode(&fund); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fund.Name == "" {
		h.writeError(w, http.StatusBadRequest, "fund name is required")
		return
	}

	created, err := h.repo.Create(fund)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate modifies an existing fund
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var fund funds.Fund
	if err := json.NewDecoder(r.Body).Decode(&fund); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fund.ID = chi.URLParam(r, "id")

	if err := h.repo.Update(fund); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, fund)
}

// HandleDelete removes a fund
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleListPrices returns price history for a fund
func (h *Handler) HandleListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.repo.PriceHistory(
		chi.URLParam(r, "id"),
		r.URL.Query().Get("from"),
		r.URL.Query().Get("to"),
	)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if prices == nil {
		prices = []funds.Price{}
	}
	h.writeJSON(w, http.StatusOK, prices)
}

// HandleAddPrice upserts a price point
func (h *Handler) HandleAddPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date  string  `json:"date"`
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Date == "" {
		h.writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	price, err := h.repo.AddPrice(chi.URLParam(r, "id"), req.Date, req.Price)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, price)
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
