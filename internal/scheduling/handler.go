package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/tenancy"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// Handler exposes appointment creation and transitions over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a scheduling handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type createRequest struct {
	LeadID         *uuid.UUID `json:"lead_id,omitempty"`
	ClientID       *uuid.UUID `json:"client_id,omitempty"`
	ProcedureID    *uuid.UUID `json:"procedure_id,omitempty"`
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	StartAt        time.Time  `json:"start_at"`
	ValueCents     *int64     `json:"value_cents,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedBy      string     `json:"created_by"`
}

type appointmentResponse struct {
	Appointment *appointments.Appointment `json:"appointment"`
	Warnings    []Warning                 `json:"warnings"`
}

// Create handles POST /appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := tenancy.ClinicIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing clinic context", http.StatusBadRequest)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.LeadID != nil && req.ClientID != nil {
		h.writeError(w, &ValidationError{Field: "party", Reason: "lead_id and client_id are mutually exclusive"})
		return
	}

	input := CreateInput{
		ClinicID:       clinicID,
		ProcedureID:    req.ProcedureID,
		ProfessionalID: req.ProfessionalID,
		StartAt:        req.StartAt,
		ValueCents:     req.ValueCents,
		Notes:          req.Notes,
		CreatedBy:      appointments.CreatedBy(req.CreatedBy),
	}
	if req.LeadID != nil {
		input.Party = appointments.LeadParty(*req.LeadID)
	}
	if req.ClientID != nil {
		input.Party = appointments.ClientParty(*req.ClientID)
	}

	result, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appointmentResponse{
		Appointment: result.Appointment,
		Warnings:    nonNil(result.Warnings),
	})
}

// Get handles GET /appointments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := tenancy.ClinicIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing clinic context", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Get(r.Context(), clinicID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appointmentResponse{Appointment: appt, Warnings: []Warning{}})
}

// Confirm handles POST /appointments/{id}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, appointments.StatusConfirmado)
}

// Complete handles POST /appointments/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, appointments.StatusRealizado)
}

// Cancel handles POST /appointments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, appointments.StatusCancelado)
}

// NoShow handles POST /appointments/{id}/no-show.
func (h *Handler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, appointments.StatusNaoCompareceu)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, target appointments.Status) {
	clinicID, ok := tenancy.ClinicIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing clinic context", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	result, err := h.service.Transition(r.Context(), clinicID, id, target)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appointmentResponse{
		Appointment: result.Appointment,
		Warnings:    nonNil(result.Warnings),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		validation *ValidationError
		conflict   *ConflictError
		notFound   *NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": validation.Error()})
	case errors.As(err, &conflict):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": conflict.Error()})
	case errors.As(err, &notFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	default:
		h.logger.Error("scheduling request failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func nonNil(warnings []Warning) []Warning {
	if warnings == nil {
		return []Warning{}
	}
	return warnings
}
