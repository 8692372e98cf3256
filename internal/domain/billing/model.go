package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoice lifecycle states. The set is closed. draft is the only
// editable state; paid and written_off are terminal.
const (
	StatusDraft         = "draft"
	StatusSubmitted     = "submitted"
	StatusPaid          = "paid"
	StatusPartiallyPaid = "partially_paid"
	StatusOverdue       = "overdue"
	StatusWrittenOff    = "written_off"
)

var validStatuses = map[string]bool{
	StatusDraft: true, StatusSubmitted: true, StatusPaid: true,
	StatusPartiallyPaid: true, StatusOverdue: true, StatusWrittenOff: true,
}

var validPaymentMethods = map[string]bool{
	"cash": true, "check": true, "credit_card": true, "debit_card": true,
	"bank_transfer": true, "insurance": true, "other": true,
}

// DefaultPaymentTerms is the due-date offset applied at submission when
// the invoice does not carry its own due date.
const DefaultPaymentTerms = 30 * 24 * time.Hour

// LineItem is one billed service on an invoice. Code is a CPT-style
// procedure code; prices are integer cents.
type LineItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	InvoiceID      uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Code           string    `db:"code" json:"code"`
	Description    string    `db:"description" json:"description"`
	Units          int       `db:"units" json:"units"`
	UnitPriceCents int       `db:"unit_price_cents" json:"unit_price_cents"`
}

// TotalCents is the line's extended price.
func (li LineItem) TotalCents() int { return li.Units * li.UnitPriceCents }

// Payment is money received against an invoice.
type Payment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	AmountCents int       `db:"amount_cents" json:"amount_cents"`
	Method      string    `db:"method" json:"method"`
	Reference   *string   `db:"reference" json:"reference,omitempty"`
	ReceivedAt  time.Time `db:"received_at" json:"received_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Invoice maps to the invoices table. All money fields are integer
// cents; totals are stored denormalized so reports can aggregate them
// in SQL.
type Invoice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number"`
	ServiceDate   time.Time  `db:"service_date" json:"service_date"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`
	Status        string     `db:"status" json:"status"`
	TotalCents    int        `db:"total_cents" json:"total_cents"`
	PaidCents     int        `db:"paid_cents" json:"paid_cents"`
	BalanceCents  int        `db:"balance_cents" json:"balance_cents"`
	SubmittedAt   *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	LineItems []LineItem `db:"-" json:"line_items,omitempty"`
	Payments  []Payment  `db:"-" json:"payments,omitempty"`
}

// RecalculateTotals rederives the money fields from the line items and
// recorded payments, and moves the status between the payment-driven
// states. Other states are left alone.
func (inv *Invoice) RecalculateTotals() {
	total := 0
	for _, li := range inv.LineItems {
		total += li.TotalCents()
	}
	paid := 0
	for _, p := range inv.Payments {
		paid += p.AmountCents
	}
	inv.TotalCents = total
	inv.PaidCents = paid
	inv.BalanceCents = total - paid

	switch inv.Status {
	case StatusSubmitted, StatusPartiallyPaid, StatusOverdue, StatusPaid:
		if inv.BalanceCents <= 0 {
			inv.Status = StatusPaid
		} else if inv.PaidCents > 0 {
			inv.Status = StatusPartiallyPaid
		}
	}
}

// invoiceNumber derives the human-facing reference from the row id.
func invoiceNumber(id uuid.UUID) string {
	return "INV-" + strings.ToUpper(id.String()[:8])
}
