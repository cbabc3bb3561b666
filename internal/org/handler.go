package org

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

// Handler exposes the tenant settings surface consumed by the settings UI.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a settings handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// GetSettings handles GET /admin/orgs/{orgID}/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, "org_id required", http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context(), orgID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "organization not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get org settings", "org_id", orgID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode org settings", "org_id", orgID, "error", err)
	}
}

// UpdateSettings handles PUT /admin/orgs/{orgID}/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, "org_id required", http.StatusBadRequest)
		return
	}

	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	settings.OrgID = orgID

	if settings.Timezone != "" {
		if _, err := time.LoadLocation(settings.Timezone); err != nil {
			http.Error(w, "invalid timezone", http.StatusBadRequest)
			return
		}
	}

	if err := h.store.Put(r.Context(), &settings); err != nil {
		h.logger.Error("failed to save org settings", "org_id", orgID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("org settings updated", "org_id", orgID)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&settings); err != nil {
		h.logger.Error("failed to encode org settings", "org_id", orgID, "error", err)
	}
}
