// Package notify records staff-facing notifications and optionally mirrors
// them to email. Notification rows are immutable; emission failures are
// never allowed to disturb the scheduling flow that triggered them.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Notification types.
const (
	TypeAppointmentCreated   = "agendamento_criado"
	TypeAppointmentConfirmed = "agendamento_confirmado"
	TypeAppointmentCompleted = "agendamento_realizado"
	TypeAppointmentCancelled = "agendamento_cancelado"
	TypeNoShow               = "nao_compareceu"
	TypeReturnScheduled      = "retorno_agendado"
)

// Notification is one immutable staff-inbox entry.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	ClinicID      string     `json:"clinic_id"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	LeadID        *uuid.UUID `json:"lead_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists notifications in the relational database.
type Store struct {
	db DB
}

// NewStore creates a notification store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("notify: db required")
	}
	return &Store{db: db}
}

// Insert records a notification. The id and created_at are assigned here.
func (s *Store) Insert(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, clinic_id, type, title, message, lead_id, appointment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.ClinicID, n.Type, n.Title, n.Message, n.LeadID, n.AppointmentID); err != nil {
		return fmt.Errorf("notify: insert: %w", err)
	}
	return nil
}

// ListByClinic returns the most recent notifications for a clinic.
func (s *Store) ListByClinic(ctx context.Context, clinicID string, limit int32) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, type, title, message, lead_id, appointment_id, created_at
		FROM notifications
		WHERE clinic_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clinicID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ClinicID, &n.Type, &n.Title, &n.Message, &n.LeadID, &n.AppointmentID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
