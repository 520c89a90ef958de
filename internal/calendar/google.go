package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/vivaclin/agenda-platform/pkg/logging"
)

var googleTracer = otel.Tracer("agenda.internal.calendar.google")

// GoogleAdapter mirrors events into a Google Calendar using a service
// account.
type GoogleAdapter struct {
	service    *gcal.Service
	calendarID string
	logger     *logging.Logger
}

// GoogleConfig holds the Google Calendar connection settings.
type GoogleConfig struct {
	CalendarID          string
	CredentialsJSONPath string
}

// NewGoogleAdapter builds a Google Calendar adapter. Returns an error when
// the credentials cannot be read or the service cannot be constructed.
func NewGoogleAdapter(ctx context.Context, cfg GoogleConfig, logger *logging.Logger) (*GoogleAdapter, error) {
	if cfg.CalendarID == "" {
		return nil, fmt.Errorf("calendar: calendar id required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	creds, err := os.ReadFile(cfg.CredentialsJSONPath)
	if err != nil {
		return nil, fmt.Errorf("calendar: read credentials: %w", err)
	}
	service, err := gcal.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gcal.CalendarEventsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: build service: %w", err)
	}
	return &GoogleAdapter{service: service, calendarID: cfg.CalendarID, logger: logger}, nil
}

func (g *GoogleAdapter) Name() string { return "google" }

// Create mirrors the event and returns the Google event id.
func (g *GoogleAdapter) Create(ctx context.Context, event Event) (string, error) {
	ctx, span := googleTracer.Start(ctx, "calendar.create", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("calendar.id", g.calendarID))

	created, err := g.service.Events.Insert(g.calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	g.logger.Debug("calendar event created", "external_id", created.Id)
	return created.Id, nil
}

// Update rewrites a mirrored event in place.
func (g *GoogleAdapter) Update(ctx context.Context, externalID string, event Event) error {
	ctx, span := googleTracer.Start(ctx, "calendar.update", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("calendar.event_id", externalID))

	if _, err := g.service.Events.Update(g.calendarID, externalID, toGoogleEvent(event)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: update event %s: %w", externalID, err)
	}
	return nil
}

// Delete removes a mirrored event.
func (g *GoogleAdapter) Delete(ctx context.Context, externalID string) error {
	ctx, span := googleTracer.Start(ctx, "calendar.delete", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("calendar.event_id", externalID))

	if err := g.service.Events.Delete(g.calendarID, externalID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: delete event %s: %w", externalID, err)
	}
	return nil
}

func toGoogleEvent(event Event) *gcal.Event {
	return &gcal.Event{
		Summary:     event.Title,
		Description: event.Description,
		Start:       &gcal.EventDateTime{DateTime: event.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: event.End.Format(time.RFC3339)},
	}
}
