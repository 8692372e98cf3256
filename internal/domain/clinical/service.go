package clinical

import (
	"context"
	"encoding/json"
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

func (s *Service) validate(rec *VisitRecord) error {
	if rec.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if rec.ProviderID == uuid.Nil {
		return fmt.Errorf("provider_id is required")
	}
	if rec.VisitDate.IsZero() {
		return fmt.Errorf("visit_date is required")
	}
	if rec.RecordType == "" {
		return fmt.Errorf("record_type is required")
	}
	if !validRecordTypes[rec.RecordType] {
		return fmt.Errorf("invalid record_type: %s", rec.RecordType)
	}
	if len(rec.Vitals) > 0 && !json.Valid(rec.Vitals) {
		return fmt.Errorf("vitals must be valid JSON")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, rec *VisitRecord) error {
	if err := s.validate(rec); err != nil {
		return err
	}
	// Records start unsigned; signing only happens through Sign.
	rec.Signed = false
	rec.SignedAt = nil
	rec.SignedBy = nil
	return s.repo.Create(ctx, rec)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*VisitRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces the record's content. A signed record is immutable;
// amendments require a new record.
func (s *Service) Update(ctx context.Context, rec *VisitRecord) error {
	current, err := s.repo.GetByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	if current.Signed {
		return fmt.Errorf("cannot modify a signed record")
	}
	if err := s.validate(rec); err != nil {
		return err
	}
	rec.Signed = false
	rec.SignedAt = nil
	rec.SignedBy = nil
	return s.repo.Update(ctx, rec)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Signed {
		return fmt.Errorf("cannot delete a signed record")
	}
	return s.repo.Delete(ctx, id)
}

// Sign locks the record and stamps who attested it and when.
func (s *Service) Sign(ctx context.Context, id uuid.UUID, signedBy string) (*VisitRecord, error) {
	if signedBy == "" {
		return nil, fmt.Errorf("signed_by is required")
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Signed {
		return nil, fmt.Errorf("record is already signed")
	}
	now := s.now()
	rec.Signed = true
	rec.SignedAt = &now
	rec.SignedBy = &signedBy
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VisitRecord, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
