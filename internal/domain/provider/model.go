package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider maps to the providers table.
type Provider struct {
	ID                   uuid.UUID      `db:"id" json:"id"`
	FirstName            string         `db:"first_name" json:"first_name"`
	LastName             string         `db:"last_name" json:"last_name"`
	Title                *string        `db:"title" json:"title,omitempty"`
	Specialty            *string        `db:"specialty" json:"specialty,omitempty"`
	NPINumber            *string        `db:"npi_number" json:"npi_number,omitempty"`
	LicenseNumber        *string        `db:"license_number" json:"license_number,omitempty"`
	Email                *string        `db:"email" json:"email,omitempty"`
	Phone                *string        `db:"phone" json:"phone,omitempty"`
	Department           *string        `db:"department" json:"department,omitempty"`
	Status               string         `db:"status" json:"status"`
	AcceptingNewPatients bool           `db:"accepting_new_patients" json:"accepting_new_patients"`
	DefaultDurationMins  int            `db:"default_appointment_duration" json:"default_appointment_duration"`
	WorkingHours         WeeklySchedule `db:"working_hours" json:"working_hours,omitempty"`
	Bio                  *string        `db:"bio" json:"bio,omitempty"`
	ExternalID           *string        `db:"external_id" json:"external_id,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// FullName returns "Title First Last" with the title omitted when unset.
func (p *Provider) FullName() string {
	parts := make([]string, 0, 3)
	if p.Title != nil && *p.Title != "" {
		parts = append(parts, *p.Title)
	}
	parts = append(parts, p.FirstName, p.LastName)
	return strings.Join(parts, " ")
}

// ClockTime is a wall-clock time of day in "HH:MM" form, as stored in
// working-hours JSON.
type ClockTime string

// Minutes parses the value into minutes since midnight.
func (t ClockTime) Minutes() (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(string(t), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", t)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", t)
	}
	return h*60 + m, nil
}

// BreakWindow is an unbookable span inside a working day.
type BreakWindow struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// DayHours is the bookable span for one weekday.
type DayHours struct {
	Start ClockTime    `json:"start"`
	End   ClockTime    `json:"end"`
	Break *BreakWindow `json:"break,omitempty"`
}

// WeeklySchedule maps lowercase weekday names ("monday" .. "sunday") to
// working hours. It is stored as a jsonb column on the provider row.
type WeeklySchedule map[string]DayHours

// DefaultDayHours applies when a provider has no schedule entry for a weekday.
var DefaultDayHours = DayHours{Start: "09:00", End: "17:00"}

// ForWeekday returns the hours for the given weekday, or false when the
// schedule has no entry for it.
func (ws WeeklySchedule) ForWeekday(d time.Weekday) (DayHours, bool) {
	hours, ok := ws[strings.ToLower(d.String())]
	return hours, ok
}

var weekdayNames = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// Validate checks that every entry names a real weekday and parses into an
// ordered start/end pair, break window included.
func (ws WeeklySchedule) Validate() error {
	for day, hours := range ws {
		if !weekdayNames[day] {
			return fmt.Errorf("invalid weekday %q in working_hours", day)
		}
		start, err := hours.Start.Minutes()
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		end, err := hours.End.Minutes()
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		if start >= end {
			return fmt.Errorf("%s: start %s is not before end %s", day, hours.Start, hours.End)
		}
		if hours.Break != nil {
			bs, err := hours.Break.Start.Minutes()
			if err != nil {
				return fmt.Errorf("%s break: %w", day, err)
			}
			be, err := hours.Break.End.Minutes()
			if err != nil {
				return fmt.Errorf("%s break: %w", day, err)
			}
			if bs >= be {
				return fmt.Errorf("%s break: start %s is not before end %s", day, hours.Break.Start, hours.Break.End)
			}
		}
	}
	return nil
}
