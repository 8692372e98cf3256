package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment. The set is closed;
// ParseStatus rejects anything else.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCheckedIn   Status = "checked_in"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCheckedIn: true,
	StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
	StatusNoShow: true, StatusRescheduled: true,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid appointment status: %s", s)
	}
	return st, nil
}

// IsTerminal reports whether no further lifecycle transition is allowed.
// rescheduled is not terminal: the record can still be cancelled or
// rescheduled again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Occupies reports whether the appointment blocks the provider's calendar
// for conflict purposes.
func (s Status) Occupies() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress:
		return true
	}
	return false
}

// OccupyingStatuses is the closed set the conflict query restricts to.
var OccupyingStatuses = []Status{StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress}

const (
	// MinDurationMinutes and MaxDurationMinutes bound a booking's length.
	MinDurationMinutes = 15
	MaxDurationMinutes = 480

	// DefaultDurationMinutes applies when a booking omits its duration.
	DefaultDurationMinutes = 30

	// CheckInEarlyWindow is how long before start_time check-in opens.
	CheckInEarlyWindow = 30 * time.Minute
)

// Appointment maps to the appointments table.
type Appointment struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PatientID           uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProviderID          uuid.UUID  `db:"provider_id" json:"provider_id"`
	ParentAppointmentID *uuid.UUID `db:"parent_appointment_id" json:"parent_appointment_id,omitempty"`
	StartTime           time.Time  `db:"start_time" json:"start_time"`
	DurationMinutes     int        `db:"duration_minutes" json:"duration_minutes"`
	AppointmentType     string     `db:"appointment_type" json:"appointment_type"`
	Status              Status     `db:"status" json:"status"`
	Urgency             string     `db:"urgency" json:"urgency"`
	ChiefComplaint      *string    `db:"chief_complaint" json:"chief_complaint,omitempty"`
	ReasonForVisit      *string    `db:"reason_for_visit" json:"reason_for_visit,omitempty"`
	Notes               *string    `db:"notes" json:"notes,omitempty"`
	RoomNumber          *string    `db:"room_number" json:"room_number,omitempty"`
	Location            *string    `db:"location" json:"location,omitempty"`
	IsTelehealth        bool       `db:"is_telehealth" json:"is_telehealth"`
	TelehealthLink      *string    `db:"telehealth_link" json:"telehealth_link,omitempty"`
	ScheduledBy         *string    `db:"scheduled_by" json:"scheduled_by,omitempty"`
	CheckInTime         *time.Time `db:"check_in_time" json:"check_in_time,omitempty"`
	ActualStartTime     *time.Time `db:"actual_start_time" json:"actual_start_time,omitempty"`
	ActualEndTime       *time.Time `db:"actual_end_time" json:"actual_end_time,omitempty"`
	CheckOutTime        *time.Time `db:"check_out_time" json:"check_out_time,omitempty"`
	EstimatedCost       *float64   `db:"estimated_cost" json:"estimated_cost,omitempty"`
	CopayAmount         *float64   `db:"copay_amount" json:"copay_amount,omitempty"`
	IsRecurring         bool       `db:"is_recurring" json:"is_recurring"`
	RecurrencePattern   *string    `db:"recurrence_pattern" json:"recurrence_pattern,omitempty"`
	ExternalID          *string    `db:"external_id" json:"external_id,omitempty"`
	CancelledAt         *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason  *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// EndTime derives the end of the booked window.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// CanCheckIn reports whether check-in is allowed at the given instant:
// status must be confirmed and now must fall within
// [start_time - CheckInEarlyWindow, end_time].
func (a *Appointment) CanCheckIn(now time.Time) bool {
	if a.Status != StatusConfirmed {
		return false
	}
	windowOpen := a.StartTime.Add(-CheckInEarlyWindow)
	return !now.Before(windowOpen) && !now.After(a.EndTime())
}

// Overlaps reports whether the appointment's half-open window intersects
// [start, end). Touching boundaries do not overlap.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && a.EndTime().After(start)
}
