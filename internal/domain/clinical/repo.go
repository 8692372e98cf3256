package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no visit record matches the lookup.
var ErrNotFound = errors.New("clinical record not found")

type Repository interface {
	Create(ctx context.Context, rec *VisitRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*VisitRecord, error)
	Update(ctx context.Context, rec *VisitRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VisitRecord, int, error)
}
