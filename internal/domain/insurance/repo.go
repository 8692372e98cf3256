package insurance

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no policy matches the lookup.
var ErrNotFound = errors.New("insurance policy not found")

type Repository interface {
	Create(ctx context.Context, p *Policy) error
	GetByID(ctx context.Context, id uuid.UUID) (*Policy, error)
	Update(ctx context.Context, p *Policy) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Policy, int, error)
}
