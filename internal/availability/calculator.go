// Package availability computes bookable time windows for a professional on
// a given date. Working hours come from the professional's personalized
// weekly schedule when present, otherwise from the clinic default; breaks,
// one-off blocks, holidays and existing appointments are subtracted.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/clinic"
	"github.com/vivaclin/agenda-platform/internal/professionals"
)

// Window is a contiguous bookable interval.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Request identifies one availability query.
type Request struct {
	ClinicID        string
	ProfessionalID  uuid.UUID
	Date            time.Time // any instant on the wanted day, clinic time
	DurationMinutes int
}

// Response carries the ordered disjoint bookable windows.
type Response struct {
	Slots []Window `json:"slots"`
}

// SettingsSource resolves clinic-level scheduling settings.
type SettingsSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Settings, error)
}

// ProfessionalSource resolves professionals and their blocks.
type ProfessionalSource interface {
	GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*professionals.Professional, error)
	ListBlocksBetween(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]professionals.Block, error)
}

// AppointmentSource lists the appointments already occupying slots.
type AppointmentSource interface {
	ListForProfessionalBetween(ctx context.Context, clinicID string, professionalID uuid.UUID, from, to time.Time) ([]*appointments.Appointment, error)
}

// SlotFinder is the availability contract consumed by callers. The result
// may be stale by the time a booking commits; creation re-validates.
type SlotFinder interface {
	Slots(ctx context.Context, req Request) (*Response, error)
}

// Calculator computes availability from live sources.
type Calculator struct {
	settings SettingsSource
	staff    ProfessionalSource
	appts    AppointmentSource
}

// NewCalculator creates an availability calculator.
func NewCalculator(settings SettingsSource, staff ProfessionalSource, appts AppointmentSource) *Calculator {
	return &Calculator{settings: settings, staff: staff, appts: appts}
}

// Slots returns the ordered disjoint windows with room for the requested
// duration. Deterministic for fixed inputs and stored state.
func (c *Calculator) Slots(ctx context.Context, req Request) (*Response, error) {
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = appointments.DefaultDurationMinutes
	}

	settings, err := c.settings.Get(ctx, req.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("availability: load settings: %w", err)
	}

	loc := settings.Location()
	day := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, loc)
	if settings.IsHoliday(day) {
		return &Response{}, nil
	}

	prof, err := c.staff.GetByID(ctx, req.ClinicID, req.ProfessionalID)
	if err != nil {
		return nil, fmt.Errorf("availability: load professional: %w", err)
	}

	// Effective schedule: personalized when present, clinic default otherwise.
	schedule := prof.Schedule
	if schedule == nil {
		schedule = &settings.DefaultSchedule
	}
	hours := schedule.ForWeekday(day.Weekday())
	if hours == nil {
		return &Response{}, nil
	}

	windows, err := workingWindows(day, hours)
	if err != nil {
		return nil, fmt.Errorf("availability: schedule for %s: %w", day.Format(time.DateOnly), err)
	}

	dayEnd := day.AddDate(0, 0, 1)
	blocks, err := c.staff.ListBlocksBetween(ctx, req.ProfessionalID, day, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("availability: load blocks: %w", err)
	}
	busy := make([]Window, 0, len(blocks))
	for _, b := range blocks {
		busy = append(busy, Window{Start: b.StartAt, End: b.EndAt})
	}

	appts, err := c.appts.ListForProfessionalBetween(ctx, req.ClinicID, req.ProfessionalID, day, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("availability: load appointments: %w", err)
	}
	for _, a := range appts {
		busy = append(busy, Window{Start: a.StartAt, End: a.EndAt()})
	}

	free := subtract(windows, busy)

	need := time.Duration(req.DurationMinutes) * time.Minute
	slots := free[:0]
	for _, w := range free {
		if w.Duration() >= need {
			slots = append(slots, w)
		}
	}
	return &Response{Slots: slots}, nil
}

// workingWindows builds the day's bookable base windows from the configured
// hours, splitting around the break interval when one is set.
func workingWindows(day time.Time, hours *clinic.DayHours) ([]Window, error) {
	open, err := clockOn(day, hours.Open)
	if err != nil {
		return nil, err
	}
	close, err := clockOn(day, hours.Close)
	if err != nil {
		return nil, err
	}
	if !close.After(open) {
		return nil, fmt.Errorf("close %q not after open %q", hours.Close, hours.Open)
	}

	if hours.BreakStart == "" || hours.BreakEnd == "" {
		return []Window{{Start: open, End: close}}, nil
	}
	breakStart, err := clockOn(day, hours.BreakStart)
	if err != nil {
		return nil, err
	}
	breakEnd, err := clockOn(day, hours.BreakEnd)
	if err != nil {
		return nil, err
	}
	return subtract([]Window{{Start: open, End: close}}, []Window{{Start: breakStart, End: breakEnd}}), nil
}

// subtract removes the busy intervals from the base windows, returning
// ordered disjoint remainders.
func subtract(windows, busy []Window) []Window {
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	var out []Window
	for _, w := range windows {
		cursor := w.Start
		for _, b := range busy {
			if !b.End.After(cursor) || !b.Start.Before(w.End) {
				continue
			}
			if b.Start.After(cursor) {
				out = append(out, Window{Start: cursor, End: minTime(b.Start, w.End)})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
			if !cursor.Before(w.End) {
				break
			}
		}
		if cursor.Before(w.End) {
			out = append(out, Window{Start: cursor, End: w.End})
		}
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// clockOn parses "15:04" onto the given day, preserving its location.
func clockOn(day time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad clock value %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}
