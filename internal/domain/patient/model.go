package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table.
type Patient struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	FirstName             string    `db:"first_name" json:"first_name"`
	MiddleName            *string   `db:"middle_name" json:"middle_name,omitempty"`
	LastName              string    `db:"last_name" json:"last_name"`
	DateOfBirth           time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender                string    `db:"gender" json:"gender"`
	Email                 *string   `db:"email" json:"email,omitempty"`
	PhonePrimary          *string   `db:"phone_primary" json:"phone_primary,omitempty"`
	PhoneSecondary        *string   `db:"phone_secondary" json:"phone_secondary,omitempty"`
	AddressLine1          *string   `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2          *string   `db:"address_line2" json:"address_line2,omitempty"`
	City                  *string   `db:"city" json:"city,omitempty"`
	State                 *string   `db:"state" json:"state,omitempty"`
	PostalCode            *string   `db:"postal_code" json:"postal_code,omitempty"`
	EmergencyContactName  *string   `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string   `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	MedicalRecordNumber   *string   `db:"medical_record_number" json:"medical_record_number,omitempty"`
	Active                bool      `db:"active" json:"active"`
	Notes                 *string   `db:"notes" json:"notes,omitempty"`
	ExternalID            *string   `db:"external_id" json:"external_id,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// FullName returns "First Middle Last" with the middle name omitted when unset.
func (p *Patient) FullName() string {
	parts := make([]string, 0, 3)
	parts = append(parts, p.FirstName)
	if p.MiddleName != nil && *p.MiddleName != "" {
		parts = append(parts, *p.MiddleName)
	}
	parts = append(parts, p.LastName)
	return strings.Join(parts, " ")
}

// Age returns the patient's age in whole years as of the given time.
func (p *Patient) Age(at time.Time) int {
	years := at.Year() - p.DateOfBirth.Year()
	anniversary := p.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}
