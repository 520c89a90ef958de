package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vivaclin/agenda-platform/internal/calendar"
	"github.com/vivaclin/agenda-platform/internal/observability/metrics"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// EventIDWriter stores the mirrored event id back on the appointment.
type EventIDWriter interface {
	SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error
}

// CalendarSyncHandler applies calendar intents against the external adapter.
type CalendarSyncHandler struct {
	adapter calendar.Adapter
	appts   EventIDWriter
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

// NewCalendarSyncHandler creates the calendar outbox handler.
func NewCalendarSyncHandler(adapter calendar.Adapter, appts EventIDWriter, m *metrics.SchedulingMetrics, logger *logging.Logger) *CalendarSyncHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarSyncHandler{adapter: adapter, appts: appts, metrics: m, logger: logger}
}

// Handle dispatches one outbox entry.
func (h *CalendarSyncHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	switch entry.Type {
	case TypeCalendarCreate:
		return h.handleCreate(ctx, entry)
	case TypeCalendarDelete:
		return h.handleDelete(ctx, entry)
	default:
		// Unknown types are swallowed: marking them delivered keeps a
		// poisoned entry from wedging the queue.
		h.logger.Warn("skipping unknown outbox entry type", "type", entry.Type, "event_id", entry.ID)
		return nil
	}
}

func (h *CalendarSyncHandler) handleCreate(ctx context.Context, entry OutboxEntry) error {
	var payload CalendarCreatePayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return fmt.Errorf("events: decode calendar create: %w", err)
	}

	externalID, err := h.adapter.Create(ctx, calendar.Event{
		Title:       payload.Title,
		Description: payload.Description,
		Start:       payload.Start,
		End:         payload.End,
	})
	if err != nil {
		h.metrics.ObserveCalendarSync("create", "error")
		return err
	}
	h.metrics.ObserveCalendarSync("create", "ok")

	if externalID == "" {
		return nil
	}
	if err := h.appts.SetExternalEventID(ctx, payload.AppointmentID, externalID); err != nil {
		return fmt.Errorf("events: store external event id: %w", err)
	}
	return nil
}

func (h *CalendarSyncHandler) handleDelete(ctx context.Context, entry OutboxEntry) error {
	var payload CalendarDeletePayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return fmt.Errorf("events: decode calendar delete: %w", err)
	}
	if payload.ExternalEventID == "" {
		return nil
	}
	if err := h.adapter.Delete(ctx, payload.ExternalEventID); err != nil {
		h.metrics.ObserveCalendarSync("delete", "error")
		return err
	}
	h.metrics.ObserveCalendarSync("delete", "ok")
	return nil
}
