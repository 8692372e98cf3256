package provider

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no provider matches the lookup.
var ErrNotFound = errors.New("provider not found")

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	Update(ctx context.Context, p *Provider) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Provider, int, error)
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error
}
