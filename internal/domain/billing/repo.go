package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no invoice matches the lookup.
var ErrNotFound = errors.New("invoice not found")

// ListFilter narrows invoice listings.
type ListFilter struct {
	PatientID *uuid.UUID
	Status    *string
}

type Repository interface {
	// Create inserts the invoice and its line items.
	Create(ctx context.Context, inv *Invoice) error
	// GetByID loads the invoice with its line items and payments.
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// Update rewrites the invoice row and replaces its line items. Only
	// draft invoices are edited this way.
	Update(ctx context.Context, inv *Invoice) error
	// UpdateState persists status, totals and lifecycle timestamps
	// without touching the line items.
	UpdateState(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns flat invoice rows (no line items or payments).
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error)
	AddPayment(ctx context.Context, p *Payment) error

	// InTx runs fn inside one transaction; repository calls made from fn
	// with the given ctx join it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
