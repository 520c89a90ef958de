// Package calendar mirrors confirmed appointments into an external calendar
// service. Every call is best-effort: callers treat failures as warnings and
// never roll back local state because of them.
package calendar

import (
	"context"
	"time"
)

// Event is the payload mirrored to the external calendar.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// Adapter is the external calendar contract.
type Adapter interface {
	// Name returns the adapter identifier (e.g. "google", "noop").
	Name() string

	// Create mirrors the event and returns the external event id.
	Create(ctx context.Context, event Event) (string, error)

	// Update rewrites a previously mirrored event.
	Update(ctx context.Context, externalID string, event Event) error

	// Delete removes a previously mirrored event.
	Delete(ctx context.Context, externalID string) error
}

// NoopAdapter satisfies Adapter when no external calendar is configured.
type NoopAdapter struct{}

func (NoopAdapter) Name() string { return "noop" }

func (NoopAdapter) Create(ctx context.Context, event Event) (string, error) {
	return "", nil
}

func (NoopAdapter) Update(ctx context.Context, externalID string, event Event) error {
	return nil
}

func (NoopAdapter) Delete(ctx context.Context, externalID string) error {
	return nil
}
