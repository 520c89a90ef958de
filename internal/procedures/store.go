// Package procedures exposes the clinic's sellable services. The scheduling
// engine only reads them: price, slot duration and the follow-up interval.
package procedures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrProcedureNotFound is returned when no procedure matches the id.
var ErrProcedureNotFound = errors.New("procedure not found")

// Procedure is a sellable clinic service.
type Procedure struct {
	ID              uuid.UUID `json:"id"`
	ClinicID        string    `json:"clinic_id"`
	Name            string    `json:"name"`
	PriceCents      int64     `json:"price_cents"`
	DurationMinutes int       `json:"duration_minutes"`
	// RetornoDias is the follow-up interval in days; 0 means the
	// procedure spawns no return visit.
	RetornoDias int       `json:"retorno_dias"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasReturn reports whether a completed visit of this procedure spawns a
// follow-up appointment.
func (p *Procedure) HasReturn() bool {
	return p.RetornoDias > 0
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads procedures.
type Store struct {
	db DB
}

// NewStore creates a procedure store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("procedures: db required")
	}
	return &Store{db: db}
}

// GetByID fetches a procedure scoped to the clinic.
func (s *Store) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*Procedure, error) {
	var p Procedure
	err := s.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, price_cents, duration_minutes, coalesce(retorno_dias, 0), created_at
		FROM procedures
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID).Scan(
		&p.ID, &p.ClinicID, &p.Name, &p.PriceCents,
		&p.DurationMinutes, &p.RetornoDias, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProcedureNotFound
		}
		return nil, fmt.Errorf("procedures: select: %w", err)
	}
	return &p, nil
}
