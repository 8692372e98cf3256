package billing

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

func (s *Service) validate(inv *Invoice) error {
	if inv.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if inv.ServiceDate.IsZero() {
		return fmt.Errorf("service_date is required")
	}
	if len(inv.LineItems) == 0 {
		return fmt.Errorf("at least one line item is required")
	}
	for i, li := range inv.LineItems {
		if li.Code == "" {
			return fmt.Errorf("line item %d: code is required", i)
		}
		if li.Description == "" {
			return fmt.Errorf("line item %d: description is required", i)
		}
		if li.Units <= 0 {
			return fmt.Errorf("line item %d: units must be positive", i)
		}
		if li.UnitPriceCents < 0 {
			return fmt.Errorf("line item %d: unit_price_cents must not be negative", i)
		}
	}
	return nil
}

// Create opens a draft invoice. The invoice number is derived from the
// generated id; totals come from the line items.
func (s *Service) Create(ctx context.Context, inv *Invoice) error {
	if err := s.validate(inv); err != nil {
		return err
	}
	inv.ID = uuid.New()
	inv.InvoiceNumber = invoiceNumber(inv.ID)
	inv.Status = StatusDraft
	inv.SubmittedAt = nil
	inv.Payments = nil
	inv.RecalculateTotals()
	return s.repo.Create(ctx, inv)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// Update rewrites a draft invoice's content and line items. Submitted
// invoices are immutable apart from payments and status transitions.
func (s *Service) Update(ctx context.Context, inv *Invoice) error {
	current, err := s.repo.GetByID(ctx, inv.ID)
	if err != nil {
		return err
	}
	if current.Status != StatusDraft {
		return fmt.Errorf("only draft invoices can be edited")
	}
	if err := s.validate(inv); err != nil {
		return err
	}
	inv.InvoiceNumber = current.InvoiceNumber
	inv.Status = current.Status
	inv.SubmittedAt = current.SubmittedAt
	inv.Payments = current.Payments
	inv.RecalculateTotals()
	return s.repo.Update(ctx, inv)
}

// Delete removes a draft. Anything already submitted stays on the books;
// write it off instead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != StatusDraft {
		return fmt.Errorf("only draft invoices can be deleted")
	}
	return s.repo.Delete(ctx, id)
}

// Submit moves a draft onto the books. A missing due date defaults to
// net-30 from submission.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("only draft invoices can be submitted")
	}
	now := s.now()
	inv.Status = StatusSubmitted
	inv.SubmittedAt = &now
	if inv.DueDate == nil {
		due := now.Add(DefaultPaymentTerms)
		inv.DueDate = &due
	}
	if err := s.repo.UpdateState(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// RecordPayment posts money against an open invoice and recomputes the
// paid/partially_paid state. Overpayment is rejected.
func (s *Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, p *Payment) (*Invoice, error) {
	if p.AmountCents <= 0 {
		return nil, fmt.Errorf("amount_cents must be positive")
	}
	if p.Method == "" {
		return nil, fmt.Errorf("method is required")
	}
	if !validPaymentMethods[p.Method] {
		return nil, fmt.Errorf("invalid payment method: %s", p.Method)
	}
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = s.now()
	}

	var inv *Invoice
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case StatusDraft:
			return fmt.Errorf("cannot record a payment on a draft invoice")
		case StatusPaid:
			return fmt.Errorf("invoice is already paid in full")
		case StatusWrittenOff:
			return fmt.Errorf("invoice has been written off")
		}
		if p.AmountCents > inv.BalanceCents {
			return fmt.Errorf("payment of %d cents exceeds outstanding balance of %d cents",
				p.AmountCents, inv.BalanceCents)
		}
		p.InvoiceID = inv.ID
		if err := s.repo.AddPayment(ctx, p); err != nil {
			return err
		}
		inv.Payments = append(inv.Payments, *p)
		inv.RecalculateTotals()
		return s.repo.UpdateState(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// MarkOverdue flags an open invoice whose due date has passed.
func (s *Service) MarkOverdue(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusSubmitted && inv.Status != StatusPartiallyPaid {
		return nil, fmt.Errorf("only submitted or partially paid invoices can become overdue")
	}
	if inv.DueDate == nil || s.now().Before(*inv.DueDate) {
		return nil, fmt.Errorf("invoice is not past its due date")
	}
	inv.Status = StatusOverdue
	if err := s.repo.UpdateState(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// WriteOff forgives the remaining balance of an open invoice.
func (s *Service) WriteOff(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case StatusPaid:
		return nil, fmt.Errorf("invoice is already paid in full")
	case StatusWrittenOff:
		return nil, fmt.Errorf("invoice has already been written off")
	}
	inv.Status = StatusWrittenOff
	if err := s.repo.UpdateState(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error) {
	if f.Status != nil && !validStatuses[*f.Status] {
		return nil, 0, fmt.Errorf("invalid status filter: %s", *f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}
