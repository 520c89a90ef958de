// Package scheduling orchestrates the appointment lifecycle: guarded
// creation, status transitions and the side effects that fan out from them.
// An operation's success is decided solely by the local state write; every
// side effect runs afterwards and degrades into a warning on failure.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/events"
	"github.com/vivaclin/agenda-platform/internal/leads"
	"github.com/vivaclin/agenda-platform/internal/notify"
	"github.com/vivaclin/agenda-platform/internal/observability/metrics"
	"github.com/vivaclin/agenda-platform/internal/procedures"
	"github.com/vivaclin/agenda-platform/internal/unification"
	"github.com/vivaclin/agenda-platform/pkg/logging"
)

// AppointmentStore is the slice of the appointment store the service needs.
type AppointmentStore interface {
	Create(ctx context.Context, appt *appointments.Appointment) error
	GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*appointments.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to appointments.Status) (bool, error)
	ClearExternalEventID(ctx context.Context, id uuid.UUID) error
}

// ProcedureSource resolves procedures for duration, price and follow-ups.
type ProcedureSource interface {
	GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*procedures.Procedure, error)
}

// LeadStages moves a prospect through its pipeline.
type LeadStages interface {
	UpdateStage(ctx context.Context, clinicID string, id uuid.UUID, stage leads.Stage) error
}

// Notifier records a staff notification.
type Notifier interface {
	Emit(ctx context.Context, n *notify.Notification) error
}

// OutboxQueue persists a side-effect intent for reliable delivery.
type OutboxQueue interface {
	Append(ctx context.Context, clinicID, entryType string, payload any) (events.OutboxEntry, error)
}

// InlineDeliverer applies one outbox entry immediately so the caller sees
// the outcome synchronously. Failed entries stay pending for the retry loop.
type InlineDeliverer interface {
	DeliverOne(ctx context.Context, entry events.OutboxEntry) error
}

// ReturnScheduler creates the automatic follow-up visit.
type ReturnScheduler interface {
	Schedule(ctx context.Context, source *appointments.Appointment, proc *procedures.Procedure) (*appointments.Appointment, error)
}

// Unifier merges the appointment's lead into a durable client.
type Unifier interface {
	Unify(ctx context.Context, appt *appointments.Appointment) (*unification.Result, error)
}

// SlotCacheInvalidator drops cached availability for a professional's day.
type SlotCacheInvalidator interface {
	Invalidate(ctx context.Context, professionalID uuid.UUID, date time.Time)
}

// Service coordinates appointment creation and lifecycle transitions.
type Service struct {
	appts      AppointmentStore
	procedures ProcedureSource
	leads      LeadStages
	notifier   Notifier
	outbox     OutboxQueue
	inline     InlineDeliverer
	returns    ReturnScheduler
	unifier    Unifier
	slotCache  SlotCacheInvalidator
	metrics    *metrics.SchedulingMetrics
	logger     *logging.Logger
}

// Deps bundles the service collaborators. Optional ones may be nil; the
// matching side effect is then skipped.
type Deps struct {
	Appointments AppointmentStore
	Procedures   ProcedureSource
	Leads        LeadStages
	Notifier     Notifier
	Outbox       OutboxQueue
	Inline       InlineDeliverer
	Returns      ReturnScheduler
	Unifier      Unifier
	SlotCache    SlotCacheInvalidator
	Metrics      *metrics.SchedulingMetrics
	Logger       *logging.Logger
}

// NewService creates the scheduling service.
func NewService(deps Deps) *Service {
	if deps.Appointments == nil {
		panic("scheduling: appointment store required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		appts:      deps.Appointments,
		procedures: deps.Procedures,
		leads:      deps.Leads,
		notifier:   deps.Notifier,
		outbox:     deps.Outbox,
		inline:     deps.Inline,
		returns:    deps.Returns,
		unifier:    deps.Unifier,
		slotCache:  deps.SlotCache,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// CreateInput is a request for a new appointment.
type CreateInput struct {
	ClinicID       string
	Party          appointments.Party
	ProcedureID    *uuid.UUID
	ProfessionalID *uuid.UUID
	StartAt        time.Time
	ValueCents     *int64
	Notes          string
	CreatedBy      appointments.CreatedBy
}

// CreateResult carries the created appointment plus any side-effect
// warnings.
type CreateResult struct {
	Appointment *appointments.Appointment
	Warnings    []Warning
}

// Create books a new appointment in agendado. The professional slot is
// re-validated inside the store's guarded insert; a stale availability
// answer surfaces as ConflictError, never a silent reschedule.
func (s *Service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.ClinicID == "" {
		return nil, &ValidationError{Field: "clinic_id", Reason: "required"}
	}
	if input.Party.IsZero() {
		return nil, &ValidationError{Field: "party", Reason: "exactly one of lead_id or client_id is required"}
	}
	if input.StartAt.IsZero() {
		return nil, &ValidationError{Field: "start_at", Reason: "required"}
	}
	switch input.CreatedBy {
	case appointments.CreatedByIA, appointments.CreatedByHumano, appointments.CreatedBySistema:
	default:
		return nil, &ValidationError{Field: "created_by", Reason: "must be ia, humano or sistema"}
	}

	appt := &appointments.Appointment{
		ID:              uuid.New(),
		ClinicID:        input.ClinicID,
		ProcedureID:     input.ProcedureID,
		ProfessionalID:  input.ProfessionalID,
		StartAt:         input.StartAt,
		DurationMinutes: appointments.DefaultDurationMinutes,
		ValueCents:      input.ValueCents,
		Status:          appointments.StatusAgendado,
		Kind:            appointments.KindNormal,
		CreatedBy:       input.CreatedBy,
		Notes:           input.Notes,
	}
	if leadID, ok := input.Party.Lead(); ok {
		appt.LeadID = &leadID
	}
	if clientID, ok := input.Party.Client(); ok {
		appt.ClientID = &clientID
	}

	var proc *procedures.Procedure
	if input.ProcedureID != nil {
		if s.procedures == nil {
			return nil, fmt.Errorf("scheduling: procedure source not configured")
		}
		var err error
		proc, err = s.procedures.GetByID(ctx, input.ClinicID, *input.ProcedureID)
		if err != nil {
			if errors.Is(err, procedures.ErrProcedureNotFound) {
				return nil, &ValidationError{Field: "procedure_id", Reason: "unknown procedure"}
			}
			return nil, fmt.Errorf("scheduling: resolve procedure: %w", err)
		}
		appt.DurationMinutes = proc.DurationMinutes
		if appt.ValueCents == nil {
			price := proc.PriceCents
			appt.ValueCents = &price
		}
	}

	if err := s.appts.Create(ctx, appt); err != nil {
		if errors.Is(err, appointments.ErrOverlap) {
			s.metrics.ObserveSlotConflict()
			return nil, &ConflictError{Reason: "professional slot already taken"}
		}
		return nil, fmt.Errorf("scheduling: create appointment: %w", err)
	}
	s.metrics.ObserveCreated(string(appt.Kind), string(appt.CreatedBy))
	s.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"clinic_id", appt.ClinicID,
		"start_at", appt.StartAt,
		"created_by", appt.CreatedBy)

	var warnings []Warning
	if leadID, ok := input.Party.Lead(); ok && s.leads != nil {
		if err := s.leads.UpdateStage(ctx, appt.ClinicID, leadID, leads.StageAgendado); err != nil {
			s.logger.Warn("lead stage update failed", "error", err, "lead_id", leadID)
			warnings = append(warnings, PartialSuccessWarning("lead stage not updated"))
		}
	}
	warnings = s.emit(ctx, warnings, &notify.Notification{
		ClinicID:      appt.ClinicID,
		Type:          notify.TypeAppointmentCreated,
		Title:         "Novo agendamento",
		Message:       fmt.Sprintf("%s às %s", s.procedureName(proc), appt.StartAt.Format("02/01/2006 15:04")),
		LeadID:        appt.LeadID,
		AppointmentID: &appt.ID,
	})
	s.invalidateSlot(ctx, appt)

	return &CreateResult{Appointment: appt, Warnings: warnings}, nil
}

// TransitionResult carries the updated appointment plus side-effect
// warnings. NoOp is set when the appointment already held the target status.
type TransitionResult struct {
	Appointment *appointments.Appointment
	Warnings    []Warning
	NoOp        bool
}

// Transition moves the appointment to the target status. The move is
// validated against the transition table and written with an optimistic
// guard so concurrent conflicting transitions cannot both win. Side effects
// run after the write and only append warnings.
func (s *Service) Transition(ctx context.Context, clinicID string, id uuid.UUID, target appointments.Status) (*TransitionResult, error) {
	appt, err := s.appts.GetByID(ctx, clinicID, id)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			return nil, &NotFoundError{Resource: "appointment", ID: id.String()}
		}
		return nil, fmt.Errorf("scheduling: load appointment: %w", err)
	}

	if appt.Status == target {
		return &TransitionResult{Appointment: appt, NoOp: true}, nil
	}
	from := appt.Status
	if !appointments.CanTransition(from, target) {
		s.metrics.ObserveTransition(string(from), string(target), "rejected")
		return nil, &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot transition from %s to %s", from, target),
		}
	}

	updated, err := s.appts.UpdateStatus(ctx, id, from, target)
	if err != nil {
		return nil, fmt.Errorf("scheduling: update status: %w", err)
	}
	if !updated {
		s.metrics.ObserveTransition(string(from), string(target), "conflict")
		return nil, &ConflictError{Reason: "appointment was modified concurrently"}
	}
	appt.Status = target
	s.metrics.ObserveTransition(string(from), string(target), "ok")
	s.logger.Info("appointment transitioned",
		"appointment_id", appt.ID,
		"clinic_id", appt.ClinicID,
		"from", from,
		"to", target)

	var warnings []Warning
	switch target {
	case appointments.StatusConfirmado:
		warnings = s.afterConfirm(ctx, appt, warnings)
	case appointments.StatusCancelado:
		warnings = s.afterCancel(ctx, appt, warnings)
	case appointments.StatusRealizado:
		warnings = s.afterComplete(ctx, appt, warnings)
	case appointments.StatusNaoCompareceu:
		warnings = s.emit(ctx, warnings, &notify.Notification{
			ClinicID:      appt.ClinicID,
			Type:          notify.TypeNoShow,
			Title:         "Paciente não compareceu",
			Message:       fmt.Sprintf("Agendamento de %s marcado como não comparecido", appt.StartAt.Format("02/01/2006 15:04")),
			LeadID:        appt.LeadID,
			AppointmentID: &appt.ID,
		})
	}

	return &TransitionResult{Appointment: appt, Warnings: warnings}, nil
}

// Get loads a single appointment scoped to the clinic.
func (s *Service) Get(ctx context.Context, clinicID string, id uuid.UUID) (*appointments.Appointment, error) {
	appt, err := s.appts.GetByID(ctx, clinicID, id)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			return nil, &NotFoundError{Resource: "appointment", ID: id.String()}
		}
		return nil, fmt.Errorf("scheduling: load appointment: %w", err)
	}
	return appt, nil
}

// afterConfirm mirrors the appointment into the external calendar.
func (s *Service) afterConfirm(ctx context.Context, appt *appointments.Appointment, warnings []Warning) []Warning {
	title := "Atendimento"
	if appt.ProcedureID != nil && s.procedures != nil {
		if proc, err := s.procedures.GetByID(ctx, appt.ClinicID, *appt.ProcedureID); err == nil {
			title = proc.Name
		}
	}
	warnings = s.dispatch(ctx, appt.ClinicID, events.TypeCalendarCreate, events.CalendarCreatePayload{
		AppointmentID: appt.ID,
		Title:         title,
		Description:   appt.Notes,
		Start:         appt.StartAt,
		End:           appt.EndAt(),
	}, warnings)
	return s.emit(ctx, warnings, &notify.Notification{
		ClinicID:      appt.ClinicID,
		Type:          notify.TypeAppointmentConfirmed,
		Title:         "Agendamento confirmado",
		Message:       fmt.Sprintf("Horário de %s confirmado", appt.StartAt.Format("02/01/2006 15:04")),
		LeadID:        appt.LeadID,
		AppointmentID: &appt.ID,
	})
}

// afterCancel removes the calendar mirror and frees the slot.
func (s *Service) afterCancel(ctx context.Context, appt *appointments.Appointment, warnings []Warning) []Warning {
	if appt.ExternalEventID != nil && *appt.ExternalEventID != "" {
		warnings = s.dispatch(ctx, appt.ClinicID, events.TypeCalendarDelete, events.CalendarDeletePayload{
			AppointmentID:   appt.ID,
			ExternalEventID: *appt.ExternalEventID,
		}, warnings)
		if err := s.appts.ClearExternalEventID(ctx, appt.ID); err != nil {
			s.logger.Warn("failed to clear external event id", "error", err, "appointment_id", appt.ID)
			warnings = append(warnings, PartialSuccessWarning("external calendar reference not cleared"))
		} else {
			appt.ExternalEventID = nil
		}
	}
	s.invalidateSlot(ctx, appt)
	return s.emit(ctx, warnings, &notify.Notification{
		ClinicID:      appt.ClinicID,
		Type:          notify.TypeAppointmentCancelled,
		Title:         "Agendamento cancelado",
		Message:       fmt.Sprintf("Horário de %s cancelado", appt.StartAt.Format("02/01/2006 15:04")),
		LeadID:        appt.LeadID,
		AppointmentID: &appt.ID,
	})
}

// afterComplete runs unification, schedules the follow-up and converts the
// lead, in that order, so the follow-up carries the resolved client id.
func (s *Service) afterComplete(ctx context.Context, appt *appointments.Appointment, warnings []Warning) []Warning {
	if appt.LeadID != nil && (appt.ClientID == nil || *appt.ClientID == uuid.Nil) && s.unifier != nil {
		if _, err := s.unifier.Unify(ctx, appt); err != nil {
			s.logger.Warn("unification failed", "error", err, "appointment_id", appt.ID)
			warnings = append(warnings, PartialSuccessWarning("lead not unified into client"))
		}
	}

	if appt.ProcedureID != nil && s.returns != nil && s.procedures != nil {
		proc, err := s.procedures.GetByID(ctx, appt.ClinicID, *appt.ProcedureID)
		if err != nil {
			s.logger.Warn("procedure lookup for return failed", "error", err, "appointment_id", appt.ID)
			warnings = append(warnings, PartialSuccessWarning("follow-up not evaluated"))
		} else if proc.HasReturn() {
			retorno, err := s.returns.Schedule(ctx, appt, proc)
			if err != nil {
				s.logger.Warn("return scheduling failed", "error", err, "appointment_id", appt.ID)
				warnings = append(warnings, PartialSuccessWarning("follow-up appointment not created"))
			} else if retorno != nil {
				s.invalidateSlot(ctx, retorno)
				warnings = s.emit(ctx, warnings, &notify.Notification{
					ClinicID:      appt.ClinicID,
					Type:          notify.TypeReturnScheduled,
					Title:         "Retorno agendado",
					Message:       fmt.Sprintf("Retorno automático para %s", retorno.StartAt.Format("02/01/2006 15:04")),
					LeadID:        appt.LeadID,
					AppointmentID: &retorno.ID,
				})
			}
		}
	}

	if appt.LeadID != nil && s.leads != nil {
		if err := s.leads.UpdateStage(ctx, appt.ClinicID, *appt.LeadID, leads.StageConvertido); err != nil {
			s.logger.Warn("lead conversion failed", "error", err, "lead_id", *appt.LeadID)
			warnings = append(warnings, PartialSuccessWarning("lead stage not set to convertido"))
		}
	}

	return s.emit(ctx, warnings, &notify.Notification{
		ClinicID:      appt.ClinicID,
		Type:          notify.TypeAppointmentCompleted,
		Title:         "Atendimento realizado",
		Message:       fmt.Sprintf("Atendimento de %s concluído", appt.StartAt.Format("02/01/2006 15:04")),
		LeadID:        appt.LeadID,
		AppointmentID: &appt.ID,
	})
}

// dispatch queues a calendar intent and applies it inline. A failed inline
// delivery leaves the entry pending for the background retry loop and
// surfaces as a warning.
func (s *Service) dispatch(ctx context.Context, clinicID, entryType string, payload any, warnings []Warning) []Warning {
	if s.outbox == nil {
		return warnings
	}
	entry, err := s.outbox.Append(ctx, clinicID, entryType, payload)
	if err != nil {
		s.logger.Error("outbox append failed", "error", err, "type", entryType)
		return append(warnings, ExternalServiceWarning("external calendar sync not queued"))
	}
	if s.inline == nil {
		return warnings
	}
	if err := s.inline.DeliverOne(ctx, entry); err != nil {
		s.logger.Warn("inline calendar sync failed, left for retry", "error", err, "type", entryType)
		return append(warnings, ExternalServiceWarning("external calendar unavailable"))
	}
	return warnings
}

// emit records a staff notification, downgrading failures to a warning.
func (s *Service) emit(ctx context.Context, warnings []Warning, n *notify.Notification) []Warning {
	if s.notifier == nil {
		return warnings
	}
	if err := s.notifier.Emit(ctx, n); err != nil {
		s.logger.Warn("notification emit failed", "error", err, "type", n.Type)
		return append(warnings, PartialSuccessWarning("notification not fully delivered"))
	}
	return warnings
}

func (s *Service) invalidateSlot(ctx context.Context, appt *appointments.Appointment) {
	if s.slotCache == nil || appt.ProfessionalID == nil {
		return
	}
	s.slotCache.Invalidate(ctx, *appt.ProfessionalID, appt.StartAt)
}

func (s *Service) procedureName(proc *procedures.Procedure) string {
	if proc == nil {
		return "Atendimento"
	}
	return proc.Name
}
