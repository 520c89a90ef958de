// Package unification merges a prospect into a durable client record the
// first time one of their appointments completes. The clinic-unique phone
// number is the join key: at most one client exists per phone, no matter how
// many leads or concurrent completions race for it.
package unification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/clients"
	"github.com/vivaclin/agenda-platform/internal/leads"
	"github.com/vivaclin/agenda-platform/internal/observability/metrics"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// ClientStore is the slice of the client store unification needs.
type ClientStore interface {
	Create(ctx context.Context, client *clients.Client) error
	GetByPhone(ctx context.Context, clinicID, phone string) (*clients.Client, error)
}

// LeadSource reads the prospect being unified.
type LeadSource interface {
	GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*leads.Lead, error)
}

// AppointmentLinker re-points appointments at the unified client.
type AppointmentLinker interface {
	LinkClient(ctx context.Context, id uuid.UUID, clientID uuid.UUID) error
	BackfillClientForLead(ctx context.Context, clinicID string, leadID, clientID uuid.UUID) (int64, error)
}

// Result reports what unification did.
type Result struct {
	Client        *clients.Client
	CreatedClient bool
	Backfilled    int64
}

// Service performs lead-to-client unification.
type Service struct {
	clients ClientStore
	leads   LeadSource
	appts   AppointmentLinker
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

// NewService creates a unification service.
func NewService(clientStore ClientStore, leadSource LeadSource, appts AppointmentLinker, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		clients: clientStore,
		leads:   leadSource,
		appts:   appts,
		metrics: m,
		logger:  logger,
	}
}

// Unify resolves the client for the appointment's lead, creating one when
// the phone is unseen, links it onto the appointment and backfills every
// other appointment of the same lead still missing a client id. Idempotent:
// re-running against an already-unified lead finds the existing client and
// backfills nothing.
func (s *Service) Unify(ctx context.Context, appt *appointments.Appointment) (*Result, error) {
	if appt.LeadID == nil || *appt.LeadID == uuid.Nil {
		return nil, fmt.Errorf("unification: appointment %s has no lead", appt.ID)
	}
	leadID := *appt.LeadID

	lead, err := s.leads.GetByID(ctx, appt.ClinicID, leadID)
	if err != nil {
		s.metrics.ObserveUnification("error")
		return nil, fmt.Errorf("unification: load lead: %w", err)
	}

	client, created, err := s.resolveClient(ctx, lead)
	if err != nil {
		s.metrics.ObserveUnification("error")
		return nil, err
	}

	if err := s.appts.LinkClient(ctx, appt.ID, client.ID); err != nil {
		s.metrics.ObserveUnification("error")
		return nil, fmt.Errorf("unification: link appointment: %w", err)
	}
	appt.ClientID = &client.ID

	backfilled, err := s.appts.BackfillClientForLead(ctx, appt.ClinicID, leadID, client.ID)
	if err != nil {
		// The current appointment is already linked; the remaining rows
		// are picked up when the next completion re-runs the backfill.
		s.logger.Warn("unification: backfill failed", "error", err, "lead_id", leadID, "client_id", client.ID)
		s.metrics.ObserveUnification("partial")
		return &Result{Client: client, CreatedClient: created}, fmt.Errorf("unification: backfill: %w", err)
	}

	s.logger.Info("lead unified into client",
		"lead_id", leadID,
		"client_id", client.ID,
		"created_client", created,
		"backfilled", backfilled)
	s.metrics.ObserveUnification("ok")
	return &Result{Client: client, CreatedClient: created, Backfilled: backfilled}, nil
}

// resolveClient finds the clinic's client for the lead's phone, creating one
// when absent. A concurrent creator losing the unique-phone race falls back
// to re-reading the winner's row.
func (s *Service) resolveClient(ctx context.Context, lead *leads.Lead) (*clients.Client, bool, error) {
	existing, err := s.clients.GetByPhone(ctx, lead.ClinicID, lead.Phone)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, clients.ErrClientNotFound) {
		return nil, false, fmt.Errorf("unification: lookup client: %w", err)
	}

	client := &clients.Client{
		ID:       uuid.New(),
		ClinicID: lead.ClinicID,
		Name:     lead.Name,
		Phone:    lead.Phone,
		Email:    lead.Email,
		Status:   clients.StatusAtivo,
	}
	err = s.clients.Create(ctx, client)
	if err == nil {
		return client, true, nil
	}
	if errors.Is(err, clients.ErrDuplicatePhone) {
		winner, lookupErr := s.clients.GetByPhone(ctx, lead.ClinicID, lead.Phone)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("unification: re-lookup after duplicate: %w", lookupErr)
		}
		return winner, false, nil
	}
	return nil, false, fmt.Errorf("unification: create client: %w", err)
}
