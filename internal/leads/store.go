package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists leads in the relational database.
type Store struct {
	db DB
}

// NewStore creates a lead store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("leads: db required")
	}
	return &Store{db: db}
}

// Create inserts a new prospect in stage novo.
func (s *Store) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lead := &Lead{
		ID:       uuid.New(),
		ClinicID: req.ClinicID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Stage:    StageNovo,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO leads (id, clinic_id, name, phone, email, stage)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, lead.ID, lead.ClinicID, lead.Name, lead.Phone, lead.Email, string(lead.Stage)).
		Scan(&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("leads: insert: %w", err)
	}
	return lead, nil
}

// GetByID fetches a lead scoped to the clinic.
func (s *Store) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*Lead, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, phone, email, stage, created_at, updated_at
		FROM leads
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)

	var lead Lead
	var stage string
	if err := row.Scan(
		&lead.ID, &lead.ClinicID, &lead.Name, &lead.Phone, &lead.Email,
		&stage, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select: %w", err)
	}
	lead.Stage = Stage(stage)
	return &lead, nil
}

// UpdateStage moves the lead to a new pipeline stage.
func (s *Store) UpdateStage(ctx context.Context, clinicID string, id uuid.UUID, stage Stage) error {
	if !stage.Valid() {
		return ErrInvalidStage
	}
	ct, err := s.db.Exec(ctx, `
		UPDATE leads
		SET stage = $3, updated_at = now()
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID, string(stage))
	if err != nil {
		return fmt.Errorf("leads: update stage: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}
