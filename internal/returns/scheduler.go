// Package returns derives the automatic follow-up visit from a completed
// appointment. A completed procedure with a follow-up interval yields one
// retorno appointment anchored at the same professional and procedure.
package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/clinic"
	"github.com/vivaclin/agenda-platform/internal/observability/metrics"
	"github.com/vivaclin/agenda-platform/internal/procedures"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// AppointmentStore is the slice of the appointment store the scheduler needs.
type AppointmentStore interface {
	Create(ctx context.Context, appt *appointments.Appointment) error
	HasReturnFor(ctx context.Context, sourceID uuid.UUID) (bool, error)
	ChainDepth(ctx context.Context, id uuid.UUID) (int, error)
}

// SettingsSource resolves the clinic timezone for the follow-up start.
type SettingsSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Settings, error)
}

// Scheduler creates retorno appointments.
type Scheduler struct {
	appts      AppointmentStore
	settings   SettingsSource
	timeOfDay  string
	chainLimit int
	metrics    *metrics.SchedulingMetrics
	logger     *logging.Logger
}

// NewScheduler creates a return scheduler. timeOfDay is "HH:MM" clinic local
// time; chainLimit caps retorno-of-retorno chains, 0 meaning unlimited.
func NewScheduler(appts AppointmentStore, settings SettingsSource, timeOfDay string, chainLimit int, m *metrics.SchedulingMetrics, logger *logging.Logger) *Scheduler {
	if timeOfDay == "" {
		timeOfDay = "10:00"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		appts:      appts,
		settings:   settings,
		timeOfDay:  timeOfDay,
		chainLimit: chainLimit,
		metrics:    m,
		logger:     logger,
	}
}

// Schedule creates the follow-up for a just-completed appointment. It
// returns (nil, nil) when no follow-up applies: the procedure has no
// interval, a return already exists for this source, or the chain cap is
// reached. The source must already carry the unification-resolved client id
// when one exists.
func (s *Scheduler) Schedule(ctx context.Context, source *appointments.Appointment, proc *procedures.Procedure) (*appointments.Appointment, error) {
	if proc == nil || !proc.HasReturn() {
		return nil, nil
	}

	exists, err := s.appts.HasReturnFor(ctx, source.ID)
	if err != nil {
		s.metrics.ObserveReturn("error")
		return nil, fmt.Errorf("returns: duplicate check: %w", err)
	}
	if exists {
		s.logger.Info("return already scheduled, skipping", "source_id", source.ID)
		s.metrics.ObserveReturn("duplicate")
		return nil, nil
	}

	if s.chainLimit > 0 && source.Kind == appointments.KindRetorno {
		depth, err := s.appts.ChainDepth(ctx, source.ID)
		if err != nil {
			s.metrics.ObserveReturn("error")
			return nil, fmt.Errorf("returns: chain depth: %w", err)
		}
		if depth >= s.chainLimit {
			s.logger.Info("return chain limit reached, skipping", "source_id", source.ID, "depth", depth)
			s.metrics.ObserveReturn("chain_limit")
			return nil, nil
		}
	}

	start, err := s.startAt(ctx, source, proc.RetornoDias)
	if err != nil {
		s.metrics.ObserveReturn("error")
		return nil, err
	}

	sourceID := source.ID
	retorno := &appointments.Appointment{
		ID:              uuid.New(),
		ClinicID:        source.ClinicID,
		LeadID:          source.LeadID,
		ClientID:        source.ClientID,
		ProcedureID:     source.ProcedureID,
		ProfessionalID:  source.ProfessionalID,
		StartAt:         start,
		DurationMinutes: source.DurationMinutes,
		ValueCents:      source.ValueCents,
		Status:          appointments.StatusAgendado,
		Kind:            appointments.KindRetorno,
		CreatedBy:       appointments.CreatedBySistema,
		Notes:           fmt.Sprintf("Retorno automático do atendimento de %s", source.StartAt.Format("02/01/2006")),
		ReturnOf:        &sourceID,
	}
	if clientID, ok := appointments.PartyOf(source).Client(); ok {
		retorno.ClientID = &clientID
	}

	if err := s.appts.Create(ctx, retorno); err != nil {
		if errors.Is(err, appointments.ErrOverlap) {
			s.metrics.ObserveReturn("conflict")
		} else {
			s.metrics.ObserveReturn("error")
		}
		return nil, fmt.Errorf("returns: create: %w", err)
	}

	s.logger.Info("return scheduled",
		"source_id", source.ID,
		"return_id", retorno.ID,
		"start_at", retorno.StartAt,
		"retorno_dias", proc.RetornoDias)
	s.metrics.ObserveReturn("created")
	return retorno, nil
}

// startAt places the follow-up N days after the source, at the configured
// time of day in the clinic's timezone.
func (s *Scheduler) startAt(ctx context.Context, source *appointments.Appointment, days int) (time.Time, error) {
	loc := time.UTC
	if s.settings != nil {
		if cfg, err := s.settings.Get(ctx, source.ClinicID); err == nil {
			loc = cfg.Location()
		} else {
			s.logger.Warn("clinic settings lookup failed, using UTC for return start", "error", err, "clinic_id", source.ClinicID)
		}
	}

	tod, err := time.Parse("15:04", s.timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("returns: parse time of day %q: %w", s.timeOfDay, err)
	}

	local := source.StartAt.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+days, tod.Hour(), tod.Minute(), 0, 0, loc), nil
}
