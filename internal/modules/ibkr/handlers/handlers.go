// Package handlers provides HTTP handlers for the broker-import inbox.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/modules/allocation"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/ibkr"
)

// Handler handles IBKR inbox HTTP requests
type Handler struct {
	repo    *ibkr.Repository
	service *ibkr.Service
	presets *allocation.PresetRepository
	log     zerolog.Logger
}

// NewHandler creates a new IBKR handler
func NewHandler(repo *ibkr.Repository, service *ibkr.Service, presets *allocation.PresetRepository, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		presets: presets,
		log:     log.With().Str("handler", "ibkr").Logger(),
	}
}

// allocationRequest is the body of allocate, modify and bulk-allocate calls.
type allocationRequest struct {
	TransactionIDs []string          `json:"transactionIds,omitempty"`
	Allocations    allocation.RowSet `json:"allocations"`
}

// HandleListInbox returns inbox transactions filtered by ?status=
func (h *Handler) HandleListInbox(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []ibkr.InboxTransaction{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleEligiblePortfolios returns the portfolios a transaction may be
// allocated into
func (h *Handler) HandleEligiblePortfolios(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Eligible(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"match_info": map[string]interface{}{
			"found":        result.Found,
			"matchedBy":    result.MatchedBy,
			"sourceName":   result.SourceName,
			"sourceSymbol": result.SourceSymbol,
		},
		"portfolios": result.EligiblePortfolios,
		"warning":    result.Warning,
	})
}

// HandleAllocations returns the persisted allocation lines of a transaction
func (h *Handler) HandleAllocations(w http.ResponseWriter, r *http.Request) {
	allocations, err := h.service.Allocations(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if allocations == nil {
		allocations = []ibkr.Allocation{}
	}
	h.writeJSON(w, http.StatusOK, allocations)
}

// HandleAllocate splits a pending transaction across portfolios
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.Allocate(chi.URLParam(r, "id"), req.Allocations); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleModifyAllocations replaces the allocations of a processed transaction
func (h *Handler) HandleModifyAllocations(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.ModifyAllocations(chi.URLParam(r, "id"), req.Allocations); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleBulkAllocate applies one allocation to every selected transaction
func (h *Handler) HandleBulkAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.TransactionIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "transactionIds is required")
		return
	}
	result := h.service.BulkAllocate(req.TransactionIDs, req.Allocations)
	h.writeJSON(w, http.StatusOK, result)
}

// HandleUnallocate removes a transaction's allocations and created records
func (h *Handler) HandleUnallocate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unallocate(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleIgnore marks a pending transaction as ignored
func (h *Handler) HandleIgnore(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ignore(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleDelete removes an inbox transaction
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleAllocationForm seeds the allocation dialog for ?ids=a,b,c
func (h *Handler) HandleAllocationForm(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	form, err := h.service.AllocationForm(ids)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, form)
}

// HandleFlexImport triggers a Flex import immediately
func (h *Handler) HandleFlexImport(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ImportFlex(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetPresets returns the saved allocation preset
func (h *Handler) HandleGetPresets(w http.ResponseWriter, r *http.Request) {
	preset, err := h.presets.Get()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if preset == nil {
		preset = allocation.RowSet{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"allocations": preset})
}

// HandleSavePresets validates and stores the allocation preset
func (h *Handler) HandleSavePresets(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Allocations) == 0 {
		if err := h.presets.Clear(); err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	if err := h.presets.Save(req.Allocations); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeServiceError maps service errors onto HTTP statuses: missing rows to
// 404, state conflicts to 409, validation problems to 400.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *allocation.ValidationError
	switch {
	case errors.Is(err, ibkr.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ibkr.ErrAlreadyProcessed),
		errors.Is(err, ibkr.ErrNotProcessed),
		errors.Is(err, ibkr.ErrNotPending):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &validationErr),
		errors.Is(err, ibkr.ErrNoMatchingFund),
		errors.Is(err, allocation.ErrNoRows):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Inbox request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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
