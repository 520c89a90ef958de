package clinic

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// Handler exposes clinic settings over HTTP.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a clinic settings handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// GetSettings handles GET /admin/clinics/{clinicID}/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, "missing clinic id", http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to load clinic settings", "error", err, "clinic_id", clinicID)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

// UpdateSettings handles PUT /admin/clinics/{clinicID}/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, "missing clinic id", http.StatusBadRequest)
		return
	}

	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	settings.ClinicID = clinicID

	if err := h.store.Set(r.Context(), &settings); err != nil {
		h.logger.Error("failed to save clinic settings", "error", err, "clinic_id", clinicID)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	h.logger.Info("clinic settings updated", "clinic_id", clinicID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&settings)
}
