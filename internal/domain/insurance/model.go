package insurance

import (
	"time"

	"github.com/google/uuid"
)

// Verification states for a policy. The set is closed; policies start
// unverified and only move through Verify.
const (
	VerificationUnverified = "unverified"
	VerificationVerified   = "verified"
	VerificationInactive   = "inactive"
	VerificationExpired    = "expired"
)

var validVerificationStatuses = map[string]bool{
	VerificationUnverified: true, VerificationVerified: true,
	VerificationInactive: true, VerificationExpired: true,
}

// Coverage ranks when a patient holds more than one policy.
var validInsuranceTypes = map[string]bool{
	"primary": true, "secondary": true, "tertiary": true,
}

// Policy maps to the insurance_policies table. Money fields are integer
// cents.
type Policy struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	InsuranceType      string     `db:"insurance_type" json:"insurance_type"`
	PayerName          string     `db:"payer_name" json:"payer_name"`
	PayerID            *string    `db:"payer_id" json:"payer_id,omitempty"`
	PlanName           *string    `db:"plan_name" json:"plan_name,omitempty"`
	PlanType           *string    `db:"plan_type" json:"plan_type,omitempty"`
	MemberID           string     `db:"member_id" json:"member_id"`
	GroupNumber        *string    `db:"group_number" json:"group_number,omitempty"`
	PolicyNumber       *string    `db:"policy_number" json:"policy_number,omitempty"`
	SubscriberName     *string    `db:"subscriber_name" json:"subscriber_name,omitempty"`
	SubscriberRelation *string    `db:"subscriber_relation" json:"subscriber_relation,omitempty"`
	EffectiveDate      *time.Time `db:"effective_date" json:"effective_date,omitempty"`
	TerminationDate    *time.Time `db:"termination_date" json:"termination_date,omitempty"`
	VerificationStatus string     `db:"verification_status" json:"verification_status"`
	VerifiedAt         *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	CopayCents         *int       `db:"copay_cents" json:"copay_cents,omitempty"`
	DeductibleCents    *int       `db:"deductible_cents" json:"deductible_cents,omitempty"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// CoversOn reports whether the policy's effective window includes the
// given date. A missing effective date means not yet in force; a missing
// termination date means open-ended.
func (p *Policy) CoversOn(date time.Time) bool {
	if p.EffectiveDate == nil || date.Before(*p.EffectiveDate) {
		return false
	}
	return p.TerminationDate == nil || !date.After(*p.TerminationDate)
}
