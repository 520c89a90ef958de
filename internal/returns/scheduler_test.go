package returns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/clinic"
	"github.com/vivaclin/agenda-platform/internal/procedures"
)

type fakeAppointmentStore struct {
	created    []*appointments.Appointment
	hasReturn  bool
	chainDepth int
	createErr  error
	checkErr   error
}

func (f *fakeAppointmentStore) Create(ctx context.Context, appt *appointments.Appointment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, appt)
	return nil
}

func (f *fakeAppointmentStore) HasReturnFor(ctx context.Context, sourceID uuid.UUID) (bool, error) {
	return f.hasReturn, f.checkErr
}

func (f *fakeAppointmentStore) ChainDepth(ctx context.Context, id uuid.UUID) (int, error) {
	return f.chainDepth, nil
}

type fakeSettings struct {
	tz string
}

func (f *fakeSettings) Get(ctx context.Context, clinicID string) (*clinic.Settings, error) {
	s := clinic.DefaultSettings(clinicID)
	if f.tz != "" {
		s.Timezone = f.tz
	}
	return s, nil
}

func completedAppointment(t *testing.T, start time.Time) *appointments.Appointment {
	t.Helper()
	leadID := uuid.New()
	profID := uuid.New()
	procID := uuid.New()
	value := int64(35000)
	return &appointments.Appointment{
		ID:              uuid.New(),
		ClinicID:        "clinic-1",
		LeadID:          &leadID,
		ProcedureID:     &procID,
		ProfessionalID:  &profID,
		StartAt:         start,
		DurationMinutes: 60,
		ValueCents:      &value,
		Status:          appointments.StatusRealizado,
		Kind:            appointments.KindNormal,
		CreatedBy:       appointments.CreatedByHumano,
	}
}

func TestScheduleCreatesReturnThirtyDaysOut(t *testing.T) {
	store := &fakeAppointmentStore{}
	settings := &fakeSettings{tz: "America/Sao_Paulo"}
	sched := NewScheduler(store, settings, "10:00", 0, nil, nil)

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	source := completedAppointment(t, time.Date(2024, 1, 10, 14, 0, 0, 0, loc))
	clientID := uuid.New()
	source.ClientID = &clientID

	proc := &procedures.Procedure{DurationMinutes: 60, RetornoDias: 30}

	retorno, err := sched.Schedule(context.Background(), source, proc)
	require.NoError(t, err)
	require.NotNil(t, retorno)

	want := time.Date(2024, 2, 9, 10, 0, 0, 0, loc)
	assert.True(t, retorno.StartAt.Equal(want), "got %s want %s", retorno.StartAt, want)
	assert.Equal(t, appointments.KindRetorno, retorno.Kind)
	assert.Equal(t, appointments.StatusAgendado, retorno.Status)
	assert.Equal(t, appointments.CreatedBySistema, retorno.CreatedBy)
	require.NotNil(t, retorno.ReturnOf)
	assert.Equal(t, source.ID, *retorno.ReturnOf)
	assert.Equal(t, source.ProfessionalID, retorno.ProfessionalID)
	assert.Equal(t, source.ProcedureID, retorno.ProcedureID)
	assert.Equal(t, source.ValueCents, retorno.ValueCents)
	require.NotNil(t, retorno.ClientID)
	assert.Equal(t, clientID, *retorno.ClientID)
	assert.Contains(t, retorno.Notes, "Retorno automático")
	assert.Contains(t, retorno.Notes, "10/01/2024")
	require.Len(t, store.created, 1)
}

func TestScheduleNoopWithoutInterval(t *testing.T) {
	store := &fakeAppointmentStore{}
	sched := NewScheduler(store, &fakeSettings{}, "10:00", 0, nil, nil)

	source := completedAppointment(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC))
	retorno, err := sched.Schedule(context.Background(), source, &procedures.Procedure{RetornoDias: 0})
	require.NoError(t, err)
	assert.Nil(t, retorno)
	assert.Empty(t, store.created)
}

func TestScheduleSkipsWhenReturnExists(t *testing.T) {
	store := &fakeAppointmentStore{hasReturn: true}
	sched := NewScheduler(store, &fakeSettings{}, "10:00", 0, nil, nil)

	source := completedAppointment(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC))
	retorno, err := sched.Schedule(context.Background(), source, &procedures.Procedure{RetornoDias: 15})
	require.NoError(t, err)
	assert.Nil(t, retorno)
	assert.Empty(t, store.created)
}

func TestScheduleChainsFromRetorno(t *testing.T) {
	store := &fakeAppointmentStore{}
	sched := NewScheduler(store, &fakeSettings{}, "10:00", 0, nil, nil)

	source := completedAppointment(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC))
	source.Kind = appointments.KindRetorno
	prior := uuid.New()
	source.ReturnOf = &prior

	retorno, err := sched.Schedule(context.Background(), source, &procedures.Procedure{RetornoDias: 15})
	require.NoError(t, err)
	require.NotNil(t, retorno)
	assert.Equal(t, source.ID, *retorno.ReturnOf)
}

func TestScheduleRespectsChainLimit(t *testing.T) {
	store := &fakeAppointmentStore{chainDepth: 3}
	sched := NewScheduler(store, &fakeSettings{}, "10:00", 3, nil, nil)

	source := completedAppointment(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC))
	source.Kind = appointments.KindRetorno

	retorno, err := sched.Schedule(context.Background(), source, &procedures.Procedure{RetornoDias: 15})
	require.NoError(t, err)
	assert.Nil(t, retorno)
	assert.Empty(t, store.created)
}

func TestScheduleSlotConflictPropagates(t *testing.T) {
	store := &fakeAppointmentStore{createErr: appointments.ErrOverlap}
	sched := NewScheduler(store, &fakeSettings{}, "10:00", 0, nil, nil)

	source := completedAppointment(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC))
	_, err := sched.Schedule(context.Background(), source, &procedures.Procedure{RetornoDias: 7})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appointments.ErrOverlap))
}

func TestScheduleDuplicateCheckFailure(t *testing.T) {
	store := &fakeAppointmentStore{checkErr: errors.New("db down")}
	sched := NewScheduler(store, &fakeSettings{}, "10:00", 0, nil, nil)

	source := completedAppointment(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC))
	_, err := sched.Schedule(context.Background(), source, &procedures.Procedure{RetornoDias: 7})
	require.Error(t, err)
}
