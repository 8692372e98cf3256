package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Dispatcher receives patients whose demographics should propagate to
// the external system. Implementations must not block.
type Dispatcher interface {
	EnqueuePatientPush(p *Patient)
}

type Service struct {
	repo Repository
	sync Dispatcher
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetSyncDispatcher attaches the external sync pipeline. Without one,
// changes stay local.
func (s *Service) SetSyncDispatcher(d Dispatcher) { s.sync = d }

func (s *Service) enqueueSync(p *Patient) {
	if s.sync != nil {
		s.sync.EnqueuePatientPush(p)
	}
}

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("date_of_birth is required")
	}
	if p.Gender == "" {
		p.Gender = "unknown"
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	p.Active = true
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.enqueueSync(p)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.Gender != "" && !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.enqueueSync(p)
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
