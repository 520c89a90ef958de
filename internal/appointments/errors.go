package appointments

import "errors"

var (
	// ErrNotFound is returned when no appointment matches the id and clinic.
	ErrNotFound = errors.New("appointment not found")

	// ErrOverlap is returned when the requested professional slot is
	// already occupied at commit time.
	ErrOverlap = errors.New("professional slot already taken")
)
