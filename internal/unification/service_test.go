package unification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivaclin/agenda-platform/internal/appointments"
	"github.com/vivaclin/agenda-platform/internal/clients"
	"github.com/vivaclin/agenda-platform/internal/leads"
)

type fakeClientStore struct {
	byPhone   map[string]*clients.Client
	created   []*clients.Client
	createErr error
	raceOnce  bool
}

func (f *fakeClientStore) Create(ctx context.Context, client *clients.Client) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.raceOnce {
		// Simulate losing the unique-phone race: the winner's row appears
		// between our failed insert and the re-lookup.
		f.raceOnce = false
		winner := *client
		winner.ID = uuid.New()
		if f.byPhone == nil {
			f.byPhone = map[string]*clients.Client{}
		}
		f.byPhone[client.Phone] = &winner
		return clients.ErrDuplicatePhone
	}
	if f.byPhone == nil {
		f.byPhone = map[string]*clients.Client{}
	}
	f.byPhone[client.Phone] = client
	f.created = append(f.created, client)
	return nil
}

func (f *fakeClientStore) GetByPhone(ctx context.Context, clinicID, phone string) (*clients.Client, error) {
	if c, ok := f.byPhone[phone]; ok {
		return c, nil
	}
	return nil, clients.ErrClientNotFound
}

type fakeLeadSource struct {
	lead *leads.Lead
	err  error
}

func (f *fakeLeadSource) GetByID(ctx context.Context, clinicID string, id uuid.UUID) (*leads.Lead, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lead, nil
}

type fakeLinker struct {
	linked     map[uuid.UUID]uuid.UUID
	backfilled int64
	linkErr    error
	bfErr      error
}

func (f *fakeLinker) LinkClient(ctx context.Context, id uuid.UUID, clientID uuid.UUID) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	if f.linked == nil {
		f.linked = map[uuid.UUID]uuid.UUID{}
	}
	f.linked[id] = clientID
	return nil
}

func (f *fakeLinker) BackfillClientForLead(ctx context.Context, clinicID string, leadID, clientID uuid.UUID) (int64, error) {
	if f.bfErr != nil {
		return 0, f.bfErr
	}
	return f.backfilled, nil
}

func testLead() *leads.Lead {
	return &leads.Lead{
		ID:       uuid.New(),
		ClinicID: "clinic-1",
		Name:     "Maria Souza",
		Phone:    "+5511999999999",
		Email:    "maria@example.com",
		Stage:    leads.StageAgendado,
	}
}

func completedFor(lead *leads.Lead) *appointments.Appointment {
	leadID := lead.ID
	return &appointments.Appointment{
		ID:        uuid.New(),
		ClinicID:  lead.ClinicID,
		LeadID:    &leadID,
		StartAt:   time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC),
		Status:    appointments.StatusRealizado,
		Kind:      appointments.KindNormal,
		CreatedBy: appointments.CreatedByHumano,
	}
}

func TestUnifyCreatesClientAndBackfills(t *testing.T) {
	lead := testLead()
	clientStore := &fakeClientStore{}
	linker := &fakeLinker{backfilled: 2}
	svc := NewService(clientStore, &fakeLeadSource{lead: lead}, linker, nil, nil)

	appt := completedFor(lead)
	result, err := svc.Unify(context.Background(), appt)
	require.NoError(t, err)

	require.NotNil(t, result.Client)
	assert.True(t, result.CreatedClient)
	assert.Equal(t, int64(2), result.Backfilled)
	assert.Equal(t, "Maria Souza", result.Client.Name)
	assert.Equal(t, "+5511999999999", result.Client.Phone)
	assert.Equal(t, clients.StatusAtivo, result.Client.Status)
	assert.Equal(t, result.Client.ID, linker.linked[appt.ID])
	require.NotNil(t, appt.ClientID)
	assert.Equal(t, result.Client.ID, *appt.ClientID)
}

func TestUnifyReusesExistingClient(t *testing.T) {
	lead := testLead()
	existing := &clients.Client{ID: uuid.New(), ClinicID: "clinic-1", Name: "Maria S.", Phone: lead.Phone, Status: clients.StatusAtivo}
	clientStore := &fakeClientStore{byPhone: map[string]*clients.Client{lead.Phone: existing}}
	linker := &fakeLinker{}
	svc := NewService(clientStore, &fakeLeadSource{lead: lead}, linker, nil, nil)

	result, err := svc.Unify(context.Background(), completedFor(lead))
	require.NoError(t, err)
	assert.False(t, result.CreatedClient)
	assert.Equal(t, existing.ID, result.Client.ID)
	assert.Empty(t, clientStore.created)
}

func TestUnifyDuplicatePhoneRaceFallsBackToWinner(t *testing.T) {
	lead := testLead()
	clientStore := &fakeClientStore{raceOnce: true}
	linker := &fakeLinker{}
	svc := NewService(clientStore, &fakeLeadSource{lead: lead}, linker, nil, nil)

	result, err := svc.Unify(context.Background(), completedFor(lead))
	require.NoError(t, err)
	assert.False(t, result.CreatedClient)
	assert.Equal(t, lead.Phone, result.Client.Phone)
	assert.Empty(t, clientStore.created)
}

func TestUnifyWithoutLeadFails(t *testing.T) {
	svc := NewService(&fakeClientStore{}, &fakeLeadSource{}, &fakeLinker{}, nil, nil)
	appt := &appointments.Appointment{ID: uuid.New(), ClinicID: "clinic-1"}
	_, err := svc.Unify(context.Background(), appt)
	require.Error(t, err)
}

func TestUnifyBackfillFailureStillLinksAppointment(t *testing.T) {
	lead := testLead()
	clientStore := &fakeClientStore{}
	linker := &fakeLinker{bfErr: errors.New("db down")}
	svc := NewService(clientStore, &fakeLeadSource{lead: lead}, linker, nil, nil)

	appt := completedFor(lead)
	result, err := svc.Unify(context.Background(), appt)
	require.Error(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Client)
	assert.Equal(t, result.Client.ID, linker.linked[appt.ID])
}
