package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

var (
	// ErrClientNotFound is returned when no client matches the lookup.
	ErrClientNotFound = errors.New("client not found")

	// ErrDuplicatePhone is returned when the clinic already has a client
	// with the same phone number.
	ErrDuplicatePhone = errors.New("client with this phone already exists")
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists clients.
type Store struct {
	db DB
}

// NewStore creates a client store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("clients: db required")
	}
	return &Store{db: db}
}

// Create inserts a new client. The unique index on (clinic_id, phone)
// guarantees at most one client per phone; concurrent unifications hit
// ErrDuplicatePhone and re-read instead.
func (s *Store) Create(ctx context.Context, client *Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	if client.Status == "" {
		client.Status = StatusAtivo
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO clients (id, clinic_id, name, phone, email, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, client.ID, client.ClinicID, client.Name, client.Phone, client.Email, string(client.Status)).
		Scan(&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("clients: insert: %w", err)
	}
	return nil
}

// GetByID fetches a client scoped to the clinic.
func (s *Store) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*Client, error) {
	return s.get(ctx, `
		SELECT id, clinic_id, name, phone, email, status, created_at, updated_at
		FROM clients
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
}

// GetByPhone fetches the clinic's client with the given phone number.
func (s *Store) GetByPhone(ctx context.Context, clinicID, phone string) (*Client, error) {
	return s.get(ctx, `
		SELECT id, clinic_id, name, phone, email, status, created_at, updated_at
		FROM clients
		WHERE clinic_id = $1 AND phone = $2
	`, clinicID, phone)
}

func (s *Store) get(ctx context.Context, query string, args ...any) (*Client, error) {
	var client Client
	var status string
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&client.ID, &client.ClinicID, &client.Name, &client.Phone,
		&client.Email, &status, &client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("clients: select: %w", err)
	}
	client.Status = Status(status)
	return &client, nil
}
