package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestCreateLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "clinic-1", "Maria Souza", "+551199999999", "maria@example.com", "novo").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	lead, err := store.Create(context.Background(), &CreateLeadRequest{
		ClinicID: "clinic-1",
		Name:     "Maria Souza",
		Phone:    "+551199999999",
		Email:    "maria@example.com",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if lead.Stage != StageNovo {
		t.Fatalf("expected stage novo, got %s", lead.Stage)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateLeadValidation(t *testing.T) {
	store := NewStore(mustMock(t))

	_, err := store.Create(context.Background(), &CreateLeadRequest{ClinicID: "clinic-1", Name: "X"})
	if !errors.Is(err, ErrMissingPhone) {
		t.Fatalf("expected ErrMissingPhone, got %v", err)
	}

	_, err = store.Create(context.Background(), &CreateLeadRequest{ClinicID: "clinic-1", Phone: "+55"})
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestUpdateStage(t *testing.T) {
	mock := mustMock(t)
	store := NewStore(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE leads").
		WithArgs(id, "clinic-1", "convertido").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.UpdateStage(context.Background(), "clinic-1", id, StageConvertido); err != nil {
		t.Fatalf("update stage failed: %v", err)
	}

	if err := store.UpdateStage(context.Background(), "clinic-1", id, Stage("ganho")); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}

	mock.ExpectExec("UPDATE leads").
		WithArgs(id, "clinic-1", "perdido").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := store.UpdateStage(context.Background(), "clinic-1", id, StagePerdido); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	mock := mustMock(t)
	store := NewStore(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT").
		WithArgs(id, "clinic-1").
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.GetByID(context.Background(), "clinic-1", id); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func mustMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}
