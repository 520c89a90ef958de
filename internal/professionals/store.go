// Package professionals stores the clinic staff that appointments are booked
// with, their optional personalized weekly schedules and one-off blocks.
package professionals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vivaclin/agenda-platform/internal/clinic"
)

// ErrProfessionalNotFound is returned when no professional matches the id.
var ErrProfessionalNotFound = errors.New("professional not found")

// Professional is a staff member appointments can be assigned to.
type Professional struct {
	ID       uuid.UUID `json:"id"`
	ClinicID string    `json:"clinic_id"`
	Name     string    `json:"name"`
	// Schedule is the personalized weekly schedule. Nil means the
	// professional follows the clinic default.
	Schedule  *clinic.WeeklySchedule `json:"schedule,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Block is a one-off interval during which the professional cannot be booked.
type Block struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	Reason         string    `json:"reason,omitempty"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads professionals and their blocks.
type Store struct {
	db DB
}

// NewStore creates a professional store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("professionals: db required")
	}
	return &Store{db: db}
}

// GetByID fetches a professional scoped to the clinic. The personalized
// schedule column is JSONB; null means "use the clinic default".
func (s *Store) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*Professional, error) {
	var p Professional
	var scheduleJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, schedule, created_at
		FROM professionals
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID).Scan(&p.ID, &p.ClinicID, &p.Name, &scheduleJSON, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, fmt.Errorf("professionals: select: %w", err)
	}
	if len(scheduleJSON) > 0 {
		var schedule clinic.WeeklySchedule
		if err := json.Unmarshal(scheduleJSON, &schedule); err != nil {
			return nil, fmt.Errorf("professionals: decode schedule: %w", err)
		}
		p.Schedule = &schedule
	}
	return &p, nil
}

// ListBlocksBetween returns the professional's blocks intersecting [from, to).
func (s *Store) ListBlocksBetween(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Block, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, professional_id, start_at, end_at, coalesce(reason, '')
		FROM professional_blocks
		WHERE professional_id = $1
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at
	`, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("professionals: list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.ProfessionalID, &b.StartAt, &b.EndAt, &b.Reason); err != nil {
			return nil, fmt.Errorf("professionals: scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
