// Package leads stores prospects and their pipeline stage. Once a lead has
// an appointment, the stage is driven by appointment events only.
package leads

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage is the lead's position in the pipeline.
type Stage string

const (
	StageNovo        Stage = "novo"
	StageAtendimento Stage = "atendimento"
	StageAgendado    Stage = "agendado"
	StageConvertido  Stage = "convertido"
	StagePerdido     Stage = "perdido"
)

// Valid reports whether the stage is a known pipeline value.
func (s Stage) Valid() bool {
	switch s {
	case StageNovo, StageAtendimento, StageAgendado, StageConvertido, StagePerdido:
		return true
	}
	return false
}

// Lead is a prospect that has not converted into a client yet.
type Lead struct {
	ID        uuid.UUID `json:"id"`
	ClinicID  string    `json:"clinic_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Stage     Stage     `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateLeadRequest is the payload for registering a prospect.
type CreateLeadRequest struct {
	ClinicID string `json:"-"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// Validate checks the create lead request.
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.ClinicID) == "" {
		return ErrMissingClinicID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Phone) == "" {
		return ErrMissingPhone
	}
	return nil
}
