package leads

import "errors"

var (
	// ErrInvalidName is returned when the name is missing.
	ErrInvalidName = errors.New("name is required")

	// ErrMissingPhone is returned when the phone number is missing.
	ErrMissingPhone = errors.New("phone is required")

	// ErrMissingClinicID is returned when no clinic scope was provided.
	ErrMissingClinicID = errors.New("clinic id is required")

	// ErrLeadNotFound is returned when a lead is not found.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrInvalidStage is returned for stages outside the pipeline enum.
	ErrInvalidStage = errors.New("invalid lead stage")
)
