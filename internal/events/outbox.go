// Package events implements the fire-and-forget outbox for external side
// effects. The primary transaction records an intent; delivery happens after
// commit and its failures never reach back into the transition that caused
// them. Undelivered entries are retried by the background deliverer.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// Outbox entry types.
const (
	TypeCalendarCreate = "calendar.create.v1"
	TypeCalendarDelete = "calendar.delete.v1"
)

// CalendarCreatePayload asks for an external calendar event to be created
// and its id stored back on the appointment.
type CalendarCreatePayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// CalendarDeletePayload asks for a previously mirrored event to be removed.
type CalendarDeletePayload struct {
	AppointmentID   uuid.UUID `json:"appointment_id"`
	ExternalEventID string    `json:"external_event_id"`
}

// OutboxEntry represents one pending side effect.
type OutboxEntry struct {
	ID        uuid.UUID
	ClinicID  string
	Type      string
	Payload   json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

// DeliveryHandler applies an intent against the outside world.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists intents for reliable delivery.
type OutboxStore struct {
	db querier
}

// NewOutboxStore creates an outbox store.
func NewOutboxStore(db querier) *OutboxStore {
	if db == nil {
		panic("events: db required")
	}
	return &OutboxStore{db: db}
}

// Append writes an intent using the given executor, typically the
// transaction that commits the state change the intent belongs to.
func Append(ctx context.Context, exec execer, clinicID, entryType string, payload any) (OutboxEntry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	entry := OutboxEntry{
		ID:       uuid.New(),
		ClinicID: clinicID,
		Type:     entryType,
		Payload:  data,
	}
	if _, err := exec.Exec(ctx, `
		INSERT INTO outbox (id, clinic_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`, entry.ID, entry.ClinicID, entry.Type, data); err != nil {
		return OutboxEntry{}, fmt.Errorf("events: insert outbox: %w", err)
	}
	return entry, nil
}

// Append writes an intent outside any caller transaction.
func (s *OutboxStore) Append(ctx context.Context, clinicID, entryType string, payload any) (OutboxEntry, error) {
	return Append(ctx, s.db, clinicID, entryType, payload)
}

// FetchPending returns undelivered entries, oldest first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, type, payload, attempts, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.ClinicID, &entry.Type, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkDelivered flags the entry as applied.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.db.Exec(ctx, `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkFailed records a failed delivery attempt; the entry stays pending.
func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`, id, cause); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}

// Deliverer polls the outbox and applies pending intents.
type Deliverer struct {
	store     *OutboxStore
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

// NewDeliverer creates a deliverer with default batch size and interval.
func NewDeliverer(store *OutboxStore, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  30 * time.Second,
	}
}

// WithBatchSize overrides the per-poll batch size.
func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

// WithInterval overrides the polling interval.
func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// DeliverOne applies a single entry and records the outcome. Returns the
// handler error so inline callers can surface it as a warning.
func (d *Deliverer) DeliverOne(ctx context.Context, entry OutboxEntry) error {
	if err := d.handler.Handle(ctx, entry); err != nil {
		if markErr := d.store.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
			d.logger.Error("failed to record outbox failure", "error", markErr, "event_id", entry.ID)
		}
		return err
	}
	if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
		d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
	} else if ok {
		d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
	}
	return nil
}

// Start runs the polling loop until the context is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Deliverer) drain(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := d.DeliverOne(ctx, entry); err != nil {
			d.logger.Warn("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type)
		}
	}
}
