package insurance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) validate(p *Policy) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.PayerName == "" {
		return fmt.Errorf("payer_name is required")
	}
	if p.MemberID == "" {
		return fmt.Errorf("member_id is required")
	}
	if p.InsuranceType == "" {
		p.InsuranceType = "primary"
	}
	if !validInsuranceTypes[p.InsuranceType] {
		return fmt.Errorf("invalid insurance_type: %s", p.InsuranceType)
	}
	if p.EffectiveDate != nil && p.TerminationDate != nil && p.TerminationDate.Before(*p.EffectiveDate) {
		return fmt.Errorf("termination_date must not precede effective_date")
	}
	if p.CopayCents != nil && *p.CopayCents < 0 {
		return fmt.Errorf("copay_cents must not be negative")
	}
	if p.DeductibleCents != nil && *p.DeductibleCents < 0 {
		return fmt.Errorf("deductible_cents must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Policy) error {
	if err := s.validate(p); err != nil {
		return err
	}
	// Verification state only changes through Verify.
	p.VerificationStatus = VerificationUnverified
	p.VerifiedAt = nil
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Policy, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Policy) error {
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.validate(p); err != nil {
		return err
	}
	p.VerificationStatus = current.VerificationStatus
	p.VerifiedAt = current.VerifiedAt
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Verify records the outcome of an eligibility check and stamps when it
// ran. An empty status means the check confirmed coverage.
func (s *Service) Verify(ctx context.Context, id uuid.UUID, status string) (*Policy, error) {
	if status == "" {
		status = VerificationVerified
	}
	if status == VerificationUnverified || !validVerificationStatuses[status] {
		return nil, fmt.Errorf("invalid verification outcome: %s", status)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	p.VerificationStatus = status
	p.VerifiedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Policy, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
