// Package handlers provides HTTP handlers for the logs page.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/modules/logs"
)

// Handler handles log HTTP requests
type Handler struct {
	repo *logs.Repository
	log  zerolog.Logger
}

// NewHandler creates a new log handler
func NewHandler(repo *logs.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "logs").Logger(),
	}
}

// HandleList returns log entries matching query filters
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	atoi := func(key string) int {
		n, _ := strconv.Atoi(q.Get(key))
		return n
	}

	entries, err := h.repo.List(logs.Filter{
		Level:    q.Get("level"),
		Category: q.Get("category"),
		From:     int64(atoi("from")),
		To:       int64(atoi("to")),
		Limit:    atoi("limit"),
		Offset:   atoi("offset"),
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []logs.LogEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// HandleCleanup removes entries past the retention window given in ?days=
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days <= 0 {
		h.writeError(w, http.StatusBadRequest, "days must be a positive number")
		return
	}

	deleted, err := h.repo.DeleteOlderThan(days)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
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
