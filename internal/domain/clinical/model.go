package clinical

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record types a visit record may carry. The set is closed.
const (
	TypeOfficeVisit = "office_visit"
	TypeTelehealth  = "telehealth"
	TypeProcedure   = "procedure"
	TypeLabReview   = "lab_review"
	TypeFollowUp    = "follow_up"
)

var validRecordTypes = map[string]bool{
	TypeOfficeVisit: true, TypeTelehealth: true, TypeProcedure: true,
	TypeLabReview: true, TypeFollowUp: true,
}

// VisitRecord maps to the clinical_records table. Vitals is stored as
// opaque JSONB; the platform never interprets individual measurements.
type VisitRecord struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patient_id"`
	ProviderID     uuid.UUID       `db:"provider_id" json:"provider_id"`
	AppointmentID  *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
	VisitDate      time.Time       `db:"visit_date" json:"visit_date"`
	RecordType     string          `db:"record_type" json:"record_type"`
	ChiefComplaint *string         `db:"chief_complaint" json:"chief_complaint,omitempty"`
	Assessment     *string         `db:"assessment" json:"assessment,omitempty"`
	Plan           *string         `db:"plan" json:"plan,omitempty"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	Vitals         json.RawMessage `db:"vitals" json:"vitals,omitempty"`
	Signed         bool            `db:"signed" json:"signed"`
	SignedAt       *time.Time      `db:"signed_at" json:"signed_at,omitempty"`
	SignedBy       *string         `db:"signed_by" json:"signed_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}
