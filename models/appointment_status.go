package models

import "strings"

// Appointment status values. These are the canonical on-disk values; the
// API additionally accepts German synonyms (the booking frontend ships in
// both languages) which are normalized before they reach the state machine.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// statusAliases maps accepted wire values to canonical statuses.
var statusAliases = map[string]string{
	"pending":          StatusPending,
	"ausstehend":       StatusPending,
	"confirmed":        StatusConfirmed,
	"bestätigt":        StatusConfirmed,
	"bestaetigt":       StatusConfirmed,
	"completed":        StatusCompleted,
	"abgeschlossen":    StatusCompleted,
	"cancelled":        StatusCancelled,
	"canceled":         StatusCancelled,
	"abgesagt":         StatusCancelled,
	"no_show":          StatusNoShow,
	"no-show":          StatusNoShow,
	"nicht erschienen": StatusNoShow,
}

// allowedTransitions describes the appointment state machine:
// pending -> confirmed -> completed; pending|confirmed -> cancelled;
// confirmed -> no_show. Terminal states accept nothing.
var allowedTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

// NormalizeStatus resolves a wire value (English or German) to its
// canonical status. The second return is false for unknown values.
func NormalizeStatus(raw string) (string, bool) {
	s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}

// IsValidAppointmentStatus reports whether raw resolves to a known status.
func IsValidAppointmentStatus(raw string) bool {
	_, ok := NormalizeStatus(raw)
	return ok
}

// CanTransition reports whether the state machine allows moving an
// appointment from one canonical status to another.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transitions are allowed.
func IsTerminalStatus(status string) bool {
	return len(allowedTransitions[status]) == 0
}

// ActiveAppointmentStatuses are the statuses that occupy a time slot.
// Cancelled and no-show appointments do not block the calendar.
func ActiveAppointmentStatuses() []string {
	return []string{StatusPending, StatusConfirmed, StatusCompleted}
}
