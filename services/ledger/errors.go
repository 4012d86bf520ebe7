package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveSessions is returned when a customer has no active block
	// with remaining balance at the studio.
	ErrNoActiveSessions = errors.New("no active session block with remaining balance")

	// ErrInsufficientBalance is returned when an adjustment would push a
	// block's remaining_sessions below zero or above total_sessions.
	ErrInsufficientBalance = errors.New("adjustment would violate block balance bounds")

	// ErrDuplicateDeduction is returned when a deduction already exists for
	// the given appointment. Retried completion requests must not deduct twice.
	ErrDuplicateDeduction = errors.New("session already deducted for this appointment")

	// ErrBlockNotFound is returned when the referenced block does not exist.
	ErrBlockNotFound = errors.New("session block not found")
)

// ValidationError reports a bad input value. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
