package services

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when an appointment's time interval overlaps
	// an existing non-cancelled appointment at the same studio and date.
	ErrConflict = errors.New("appointment time conflicts with an existing appointment")

	// ErrInvalidTransition is returned when the requested status change is
	// not allowed by the appointment state machine.
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
)

// ValidationError reports a bad input value on an appointment request.
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

// CancellationNoticeError is returned when a customer cancels with less
// than the studio's required advance notice. ShortfallHours tells the
// caller how many hours of notice were missing.
type CancellationNoticeError struct {
	RequiredHours  int
	ShortfallHours float64
}

func (e *CancellationNoticeError) Error() string {
	return fmt.Sprintf("cancellation requires %d hours notice, %.1f hours short", e.RequiredHours, e.ShortfallHours)
}
