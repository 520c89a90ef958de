// Package clinic provides per-clinic scheduling settings: the default weekly
// schedule, public holidays and notification preferences.
package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DayHours represents the working hours for a single day.
// Nil means the clinic (or professional) does not work that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00"
	// BreakStart/BreakEnd carve a non-bookable interval out of the day,
	// e.g. lunch. Both empty means no break.
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

// WeeklySchedule maps day names to their working hours.
type WeeklySchedule struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// ForWeekday returns the hours configured for the given weekday.
func (w *WeeklySchedule) ForWeekday(day time.Weekday) *DayHours {
	if w == nil {
		return nil
	}
	switch day {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	case time.Sunday:
		return w.Sunday
	}
	return nil
}

// NotificationPrefs holds staff notification preferences for a clinic.
type NotificationPrefs struct {
	EmailEnabled    bool     `json:"email_enabled"`
	EmailRecipients []string `json:"email_recipients,omitempty"`
}

// Settings holds clinic-level scheduling configuration.
type Settings struct {
	ClinicID string `json:"clinic_id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"` // e.g. "America/Sao_Paulo"
	// DefaultSchedule applies to professionals without a personalized one.
	DefaultSchedule WeeklySchedule `json:"default_schedule"`
	// Holidays are non-bookable dates in "2006-01-02" format.
	Holidays      []string          `json:"holidays,omitempty"`
	Notifications NotificationPrefs `json:"notifications"`
}

// IsHoliday reports whether the given date is configured as a holiday.
func (s *Settings) IsHoliday(date time.Time) bool {
	day := date.Format(time.DateOnly)
	for _, h := range s.Holidays {
		if h == day {
			return true
		}
	}
	return false
}

// Location resolves the clinic timezone, falling back to UTC.
func (s *Settings) Location() *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// DefaultSettings returns the configuration used before a clinic customizes
// anything.
func DefaultSettings(clinicID string) *Settings {
	weekday := &DayHours{Open: "09:00", Close: "18:00", BreakStart: "12:00", BreakEnd: "13:00"}
	return &Settings{
		ClinicID: clinicID,
		Name:     "Clínica",
		Timezone: "America/Sao_Paulo",
		DefaultSchedule: WeeklySchedule{
			Monday:    weekday,
			Tuesday:   weekday,
			Wednesday: weekday,
			Thursday:  weekday,
			Friday:    weekday,
			Saturday:  &DayHours{Open: "09:00", Close: "13:00"},
		},
		Notifications: NotificationPrefs{},
	}
}

// Store provides persistence for clinic settings.
type Store struct {
	redis *redis.Client
}

// NewStore creates a clinic settings store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(clinicID string) string {
	return fmt.Sprintf("clinic:settings:%s", clinicID)
}

// Get retrieves clinic settings, returning defaults when none are stored.
func (s *Store) Get(ctx context.Context, clinicID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key(clinicID)).Bytes()
	if err == redis.Nil {
		return DefaultSettings(clinicID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal settings: %w", err)
	}
	return &settings, nil
}

// Set saves clinic settings.
func (s *Store) Set(ctx context.Context, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("clinic: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(settings.ClinicID), data, 0).Err(); err != nil {
		return fmt.Errorf("clinic: set settings: %w", err)
	}
	return nil
}
