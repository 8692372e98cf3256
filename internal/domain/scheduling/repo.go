package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carebase/carebase/internal/domain/provider"
)

// ListFilter narrows ListByDateRange. Nil fields are ignored.
type ListFilter struct {
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
	Status     *Status
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error

	// ListByDateRange returns every appointment with start_time in
	// [from, to), ordered by start_time ascending.
	ListByDateRange(ctx context.Context, from, to time.Time, f ListFilter) ([]*Appointment, error)

	// ListOverlapping returns the provider's occupying appointments whose
	// window intersects [start, end), ordered by start_time ascending.
	// excludeID, when set, removes that appointment from consideration.
	ListOverlapping(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Appointment, error)

	CountByPatientAndProvider(ctx context.Context, patientID, providerID uuid.UUID) (int, error)
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error

	// InTx runs fn inside one transaction; repository calls made from fn
	// share it via the context.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// LockProviderCalendar serializes bookings against one provider for
	// the rest of the current transaction.
	LockProviderCalendar(ctx context.Context, providerID uuid.UUID) error
}

// ProviderDirectory is the slice of the provider domain the scheduler
// needs. provider.Repository satisfies it.
type ProviderDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error)
}
