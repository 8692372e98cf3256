package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validProviderStatuses = map[string]bool{
	"active": true, "inactive": true, "on_leave": true, "retired": true,
}

func (s *Service) Create(ctx context.Context, p *Provider) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if !validProviderStatuses[p.Status] {
		return fmt.Errorf("invalid provider status: %s", p.Status)
	}
	if p.DefaultDurationMins <= 0 {
		p.DefaultDurationMins = 30
	}
	if err := p.WorkingHours.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Provider) error {
	if p.Status != "" && !validProviderStatuses[p.Status] {
		return fmt.Errorf("invalid provider status: %s", p.Status)
	}
	if p.DefaultDurationMins <= 0 {
		p.DefaultDurationMins = 30
	}
	if err := p.WorkingHours.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Provider, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
