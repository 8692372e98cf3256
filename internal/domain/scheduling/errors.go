package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an appointment id does not exist.
var ErrNotFound = errors.New("appointment not found")

// ErrProviderNotFound is returned when a booking references an unknown
// provider.
var ErrProviderNotFound = errors.New("provider not found")

// ValidationError reports a request the service refuses on its own terms,
// before any calendar state is consulted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictWindow identifies one existing booking that overlaps the
// requested slot.
type ConflictWindow struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// ConflictError reports that the requested slot collides with one or more
// bookings already occupying the provider's calendar.
type ConflictError struct {
	Windows []ConflictWindow
}

func NewConflictError(conflicts []*Appointment) *ConflictError {
	ce := &ConflictError{Windows: make([]ConflictWindow, 0, len(conflicts))}
	for _, a := range conflicts {
		ce.Windows = append(ce.Windows, ConflictWindow{
			AppointmentID: a.ID,
			StartTime:     a.StartTime,
			EndTime:       a.EndTime(),
		})
	}
	return ce
}

func (e *ConflictError) Error() string {
	if len(e.Windows) == 1 {
		w := e.Windows[0]
		return fmt.Sprintf("requested slot conflicts with appointment %s (%s to %s)",
			w.AppointmentID, w.StartTime.Format(time.RFC3339), w.EndTime.Format(time.RFC3339))
	}
	return fmt.Sprintf("requested slot conflicts with %d existing appointments", len(e.Windows))
}
