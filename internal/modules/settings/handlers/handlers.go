// Package handlers provides HTTP handlers for application settings.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/modules/settings"
)

// Handler handles settings HTTP requests
type Handler struct {
	repo *settings.Repository
	log  zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(repo *settings.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "settings").Logger(),
	}
}

// secretKeys are masked in list responses.
var secretKeys = map[string]bool{
	settings.KeyFlexToken: true,
}

func mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

// HandleList returns all settings with secret values masked
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []settings.Setting{}
	}
	for i := range list {
		if secretKeys[list[i].Key] {
			list[i].Value = mask(list[i].Value)
		}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleUpdate stores the submitted key/value pairs
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings []struct {
			Key         string  `json:"key"`
			Value       string  `json:"value"`
			Description *string `json:"description,omitempty"`
		} `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Settings) == 0 {
		h.writeError(w, http.StatusBadRequest, "settings is required")
		return
	}

	for _, s := range req.Settings {
		if s.Key == "" {
			h.writeError(w, http.StatusBadRequest, "setting key must not be empty")
			return
		}
		if err := h.repo.Set(s.Key, s.Value, s.Description); err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
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
