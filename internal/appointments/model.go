// Package appointments holds the appointment entity, its status machine and
// its persistence. Every status change in the platform goes through the
// transition table defined here.
package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes a regular visit from an auto-generated follow-up.
type Kind string

const (
	KindNormal  Kind = "normal"
	KindRetorno Kind = "retorno"
)

// CreatedBy records which actor created the appointment.
type CreatedBy string

const (
	CreatedByIA      CreatedBy = "ia"
	CreatedByHumano  CreatedBy = "humano"
	CreatedBySistema CreatedBy = "sistema"
)

// DefaultDurationMinutes is used when the appointment has no procedure.
const DefaultDurationMinutes = 60

// Appointment is one scheduled or occurred clinic visit.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	ClinicID        string     `json:"clinic_id"`
	LeadID          *uuid.UUID `json:"lead_id,omitempty"`
	ClientID        *uuid.UUID `json:"client_id,omitempty"`
	ProcedureID     *uuid.UUID `json:"procedure_id,omitempty"`
	ProfessionalID  *uuid.UUID `json:"professional_id,omitempty"`
	StartAt         time.Time  `json:"start_at"`
	DurationMinutes int        `json:"duration_minutes"`
	ValueCents      *int64     `json:"value_cents,omitempty"`
	Status          Status     `json:"status"`
	Kind            Kind       `json:"kind"`
	CreatedBy       CreatedBy  `json:"created_by"`
	Notes           string     `json:"notes,omitempty"`
	ExternalEventID *string    `json:"external_calendar_event_id,omitempty"`
	ReturnOf        *uuid.UUID `json:"return_of,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EndAt returns the moment the appointment stops occupying its slot.
func (a *Appointment) EndAt() time.Time {
	mins := a.DurationMinutes
	if mins <= 0 {
		mins = DefaultDurationMinutes
	}
	return a.StartAt.Add(time.Duration(mins) * time.Minute)
}

// Party identifies who the appointment is for: a lead or a client, never
// both. It replaces the loose phone-string matching between the two records.
type Party struct {
	leadID   uuid.UUID
	clientID uuid.UUID
}

// LeadParty builds a party backed by a prospect.
func LeadParty(id uuid.UUID) Party {
	return Party{leadID: id}
}

// ClientParty builds a party backed by a durable client.
func ClientParty(id uuid.UUID) Party {
	return Party{clientID: id}
}

// Lead returns the lead id when the party is a prospect.
func (p Party) Lead() (uuid.UUID, bool) {
	return p.leadID, p.leadID != uuid.Nil
}

// Client returns the client id when the party is a durable client.
func (p Party) Client() (uuid.UUID, bool) {
	return p.clientID, p.clientID != uuid.Nil
}

// IsZero reports whether no identifying party was given.
func (p Party) IsZero() bool {
	return p.leadID == uuid.Nil && p.clientID == uuid.Nil
}

// PartyOf reconstructs the party carried on a stored appointment. The client
// id wins when both are set, since unification links a client onto lead
// appointments without erasing the lead.
func PartyOf(a *Appointment) Party {
	if a.ClientID != nil && *a.ClientID != uuid.Nil {
		return ClientParty(*a.ClientID)
	}
	if a.LeadID != nil && *a.LeadID != uuid.Nil {
		return LeadParty(*a.LeadID)
	}
	return Party{}
}
