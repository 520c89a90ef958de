package scheduling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/tenancy"
)

func testRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if clinicID := req.Header.Get("X-Clinic-Id"); clinicID != "" {
				req = req.WithContext(tenancy.WithClinicID(req.Context(), clinicID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/appointments", h.Create)
	r.Get("/appointments/{id}", h.Get)
	r.Post("/appointments/{id}/confirm", h.Confirm)
	r.Post("/appointments/{id}/complete", h.Complete)
	r.Post("/appointments/{id}/cancel", h.Cancel)
	r.Post("/appointments/{id}/no-show", h.NoShow)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Clinic-Id", "clinic-1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreate(t *testing.T) {
	f := newFixture()
	router := testRouter(NewHandler(f.svc, nil))

	leadID := uuid.New()
	rec := doJSON(t, router, http.MethodPost, "/appointments", map[string]any{
		"lead_id":    leadID,
		"start_at":   time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC),
		"created_by": "ia",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Appointment appointments.Appointment `json:"appointment"`
		Warnings    []Warning                `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, appointments.StatusAgendado, resp.Appointment.Status)
	require.NotNil(t, resp.Appointment.LeadID)
	assert.Equal(t, leadID, *resp.Appointment.LeadID)
	assert.NotNil(t, resp.Warnings)
}

func TestHandlerCreateRejectsBothParties(t *testing.T) {
	f := newFixture()
	router := testRouter(NewHandler(f.svc, nil))

	rec := doJSON(t, router, http.MethodPost, "/appointments", map[string]any{
		"lead_id":    uuid.New(),
		"client_id":  uuid.New(),
		"start_at":   time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC),
		"created_by": "humano",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerCreateMissingParty(t *testing.T) {
	f := newFixture()
	router := testRouter(NewHandler(f.svc, nil))

	rec := doJSON(t, router, http.MethodPost, "/appointments", map[string]any{
		"start_at":   time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC),
		"created_by": "humano",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerCreateSlotConflict(t *testing.T) {
	f := newFixture()
	f.store.createErr = appointments.ErrOverlap
	router := testRouter(NewHandler(f.svc, nil))

	rec := doJSON(t, router, http.MethodPost, "/appointments", map[string]any{
		"lead_id":    uuid.New(),
		"start_at":   time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC),
		"created_by": "ia",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerCreateMalformedBody(t *testing.T) {
	f := newFixture()
	router := testRouter(NewHandler(f.svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{not json"))
	req.Header.Set("X-Clinic-Id", "clinic-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRequiresClinicHeader(t *testing.T) {
	f := newFixture()
	router := testRouter(NewHandler(f.svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerConfirmAndGet(t *testing.T) {
	f := newFixture()
	appt := f.seedAppointment(appointments.StatusAgendado)
	router := testRouter(NewHandler(f.svc, nil))

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/confirm", appt.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Appointment appointments.Appointment `json:"appointment"`
		Warnings    []Warning                `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, appointments.StatusConfirmado, resp.Appointment.Status)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/appointments/%s", appt.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, appointments.StatusConfirmado, resp.Appointment.Status)
}

func TestHandlerTransitionNotFound(t *testing.T) {
	f := newFixture()
	router := testRouter(NewHandler(f.svc, nil))

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerInvalidTransition(t *testing.T) {
	f := newFixture()
	appt := f.seedAppointment(appointments.StatusAgendado)
	router := testRouter(NewHandler(f.svc, nil))

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/complete", appt.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerNoShowWarningsSerialized(t *testing.T) {
	f := newFixture()
	f.notifier.err = fmt.Errorf("smtp down")
	appt := f.seedAppointment(appointments.StatusConfirmado)
	router := testRouter(NewHandler(f.svc, nil))

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/no-show", appt.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Warnings []Warning `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, WarnPartialSuccess, resp.Warnings[0].Code)
}
