// Package clients stores durable customer records. A client is created at
// most once per phone number within a clinic, either by unification when a
// lead completes their first visit or manually by staff.
package clients

import (
	"time"

	"github.com/google/uuid"
)

// Status of the client record.
type Status string

const (
	StatusAtivo   Status = "ativo"
	StatusInativo Status = "inativo"
)

// Client is a converted, durable customer.
type Client struct {
	ID        uuid.UUID `json:"id"`
	ClinicID  string    `json:"clinic_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
