// Package handlers provides HTTP handlers for transaction management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/modules/transactions"
)

// Handler handles transaction HTTP requests
type Handler struct {
	repo    *transactions.Repository
	service *transactions.Service
	log     zerolog.Logger
}

// NewHandler creates a new transaction handler
func NewHandler(repo *transactions.Repository, service *transactions.Service, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		log:     log.With().Str("handler", "transactions").Logger(),
	}
}

// HandleList returns transactions matching query filters
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.repo.List(transactions.Filter{
		PortfolioID: q.Get("portfolioId"),
		FundID:      q.Get("fundId"),
		Type:        q.Get("type"),
		FromDate:    q.Get("from"),
		ToDate:      q.Get("to"),
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []transactions.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleGet returns a single transaction
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.repo.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		h.writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// HandleCreate records a new transaction
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var t transactions.Transaction
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if t.PortfolioID == "" || t.FundID == "" || t.Date == "" {
		h.writeError(w, http.StatusBadRequest, "portfolioId, fundId and date are required")
		return
	}
	switch t.Type {
	case transactions.TypeBuy, transactions.TypeSell, transactions.TypeFee:
	default:
		h.writeError(w, http.StatusBadRequest, "type must be buy, sell or fee")
		return
	}

	created, err := h.repo.Create(t)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate modifies an existing transaction
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var t transactions.Transaction
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t.ID = chi.URLParam(r, "id")

	if err := h.repo.Update(t); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// HandleDelete removes a transaction
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleRealizedGain previews the realized gain of a prospective sell
func (h *Handler) HandleRealizedGain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PortfolioID   string  `json:"portfolioId"`
		FundID        string  `json:"fundId"`
		Shares        float64 `json:"shares"`
		PricePerShare float64 `json:"pricePerShare"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	gain, err := h.service.ComputeRealizedGain(req.PortfolioID, req.FundID, req.Shares, req.PricePerShare)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, gain)
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
