package models

import "errors"

// Error taxonomy. Callers match with errors.Is; handlers map these to
// HTTP status codes.
var (
	// ErrEmptyDrillPool is a fatal configuration error: no drills exist
	// for the category or globally, so assignment cannot proceed.
	ErrEmptyDrillPool = errors.New("drill pool is empty")

	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionCompleted is returned when complete is called on a
	// session that has already been completed.
	ErrSessionCompleted = errors.New("session already completed")

	// ErrDrillNotFound is returned when a session references a drill
	// that no longer exists in the catalog.
	ErrDrillNotFound = errors.New("drill not found")

	// ErrValidation covers out-of-range or malformed caller input.
	ErrValidation = errors.New("validation failed")
)

type ErrorResponse struct {
	Error string `json:"error"`
}
