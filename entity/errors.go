package entity

import "errors"

// Sentinel errors crossing the core/storage/handler boundaries. Handlers
// map them to HTTP statuses; everything else becomes a 500.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("not accessible")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadSignature = errors.New("invalid signature")
)

// ValidationError marks a malformed request; the message is safe to show
// to the caller.
type ValidationError struct {
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string {
	return e.Message
}
