package app

import "errors"

// Sentinel errors translated to HTTP status codes at the server boundary.
var (
	// ErrValidation wraps client input problems (400).
	ErrValidation = errors.New("invalid input")
	// ErrInvalidCredentials covers login failures (401).
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrForbidden marks operations on records the caller does not own (403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks missing records (404).
	ErrNotFound = errors.New("not found")
	// ErrEmailExists rejects duplicate registrations (400).
	ErrEmailExists = errors.New("email already exists")
	// ErrMissingCoordinates rejects searches with no resolvable location (400).
	ErrMissingCoordinates = errors.New("missing or invalid coordinates")
)
