package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes that mean another writer got the slot first.
const (
	pgExclusionViolation  = "23P01"
	pgSerializationFailed = "40001"
	pgUniqueViolation     = "23505"
)

// DB abstracts the pgx pool interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store provides persistence for appointments.
type Store struct {
	db DB
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("appointments: db required")
	}
	return &Store{db: db}
}

const appointmentColumns = `
	id, clinic_id, lead_id, client_id, procedure_id, professional_id,
	start_at, duration_minutes, value_cents, status, kind, created_by,
	notes, external_calendar_event_id, return_of, created_at, updated_at
`

// Create inserts a new appointment. When a professional is assigned, the
// overlap re-check and the insert run in one serializable transaction so a
// losing concurrent writer gets ErrOverlap instead of a silent double
// booking. A gist exclusion constraint on the table backstops the check.
func (s *Store) Create(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.DurationMinutes <= 0 {
		appt.DurationMinutes = DefaultDurationMinutes
	}
	if appt.Status == "" {
		appt.Status = StatusAgendado
	}
	if appt.Kind == "" {
		appt.Kind = KindNormal
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if appt.ProfessionalID != nil {
		var overlapping int
		err := tx.QueryRow(ctx, `
			SELECT count(*)
			FROM appointments
			WHERE professional_id = $1
			  AND status <> 'cancelado'
			  AND start_at < $3
			  AND start_at + make_interval(mins => duration_minutes) > $2
		`, *appt.ProfessionalID, appt.StartAt, appt.EndAt()).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("appointments: overlap check: %w", err)
		}
		if overlapping > 0 {
			return ErrOverlap
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, clinic_id, lead_id, client_id, procedure_id, professional_id,
			start_at, duration_minutes, value_cents, status, kind, created_by,
			notes, return_of
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`,
		appt.ID, appt.ClinicID, appt.LeadID, appt.ClientID, appt.ProcedureID,
		appt.ProfessionalID, appt.StartAt, appt.DurationMinutes, appt.ValueCents,
		string(appt.Status), string(appt.Kind), string(appt.CreatedBy),
		appt.Notes, appt.ReturnOf,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if isSlotConflict(err) {
			return ErrOverlap
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isSlotConflict(err) {
			return ErrOverlap
		}
		return fmt.Errorf("appointments: commit: %w", err)
	}
	return nil
}

// GetByID loads an appointment scoped to the clinic.
func (s *Store) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND clinic_id = $2
	`, id, clinicID)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select: %w", err)
	}
	return appt, nil
}

// UpdateStatus moves the appointment from one status to another. The guard
// on the current status serializes concurrent transitions: the caller that
// loses the race sees false and must reload to decide what happened.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	ct, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("appointments: update status: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// SetExternalEventID stores the mirrored calendar event id.
func (s *Store) SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET external_calendar_event_id = $2, updated_at = now()
		WHERE id = $1
	`, id, eventID); err != nil {
		return fmt.Errorf("appointments: set external event id: %w", err)
	}
	return nil
}

// ClearExternalEventID drops the mirrored calendar event id. Called on
// cancellation regardless of whether the remote delete succeeded.
func (s *Store) ClearExternalEventID(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET external_calendar_event_id = NULL, updated_at = now()
		WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("appointments: clear external event id: %w", err)
	}
	return nil
}

// LinkClient attaches a client id to a single appointment.
func (s *Store) LinkClient(ctx context.Context, id uuid.UUID, clientID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET client_id = $2, updated_at = now()
		WHERE id = $1
	`, id, clientID); err != nil {
		return fmt.Errorf("appointments: link client: %w", err)
	}
	return nil
}

// BackfillClientForLead points every appointment of the lead that has no
// client yet at the given client. Idempotent: rows that already carry a
// client id are left alone, so partial failures are safe to retry.
func (s *Store) BackfillClientForLead(ctx context.Context, clinicID string, leadID, clientID uuid.UUID) (int64, error) {
	ct, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET client_id = $3, updated_at = now()
		WHERE clinic_id = $1 AND lead_id = $2 AND client_id IS NULL
	`, clinicID, leadID, clientID)
	if err != nil {
		return 0, fmt.Errorf("appointments: backfill client: %w", err)
	}
	return ct.RowsAffected(), nil
}

// HasReturnFor reports whether a follow-up was already generated from the
// given appointment. Guards against duplicate returns when realizado is
// somehow applied twice.
func (s *Store) HasReturnFor(ctx context.Context, sourceID uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx, `
		SELECT 1 FROM appointments WHERE return_of = $1 LIMIT 1
	`, sourceID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("appointments: check return: %w", err)
	}
	return true, nil
}

// ChainDepth counts how many appointments precede this one in its retorno
// chain, the appointment itself included.
func (s *Store) ChainDepth(ctx context.Context, id uuid.UUID) (int, error) {
	var depth int
	err := s.db.QueryRow(ctx, `
		WITH RECURSIVE chain AS (
			SELECT id, return_of, 1 AS depth FROM appointments WHERE id = $1
			UNION ALL
			SELECT a.id, a.return_of, c.depth + 1
			FROM appointments a
			JOIN chain c ON a.id = c.return_of
		)
		SELECT coalesce(max(depth), 0) FROM chain
	`, id).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("appointments: chain depth: %w", err)
	}
	return depth, nil
}

// ListForProfessionalBetween returns the professional's non-cancelled
// appointments starting within [from, to), ordered by start time. The
// availability calculator subtracts these from the working windows.
func (s *Store) ListForProfessionalBetween(ctx context.Context, clinicID string, professionalID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		  AND professional_id = $2
		  AND status <> 'cancelado'
		  AND start_at >= $3
		  AND start_at < $4
		ORDER BY start_at
	`, clinicID, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: list for professional: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt            Appointment
		status, kind    string
		createdBy       string
		externalEventID *string
	)
	if err := row.Scan(
		&appt.ID, &appt.ClinicID, &appt.LeadID, &appt.ClientID,
		&appt.ProcedureID, &appt.ProfessionalID, &appt.StartAt,
		&appt.DurationMinutes, &appt.ValueCents, &status, &kind,
		&createdBy, &appt.Notes, &externalEventID, &appt.ReturnOf,
		&appt.CreatedAt, &appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.Status = Status(status)
	appt.Kind = Kind(kind)
	appt.CreatedBy = CreatedBy(createdBy)
	appt.ExternalEventID = externalEventID
	return &appt, nil
}

func isSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation, pgSerializationFailed, pgUniqueViolation:
			return true
		}
	}
	return false
}
