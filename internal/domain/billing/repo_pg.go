package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebase/carebase/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

const invoiceCols = `id, patient_id, appointment_id, invoice_number, service_date, due_date,
	status, total_cents, paid_cents, balance_cents, submitted_at, notes, created_at, updated_at`

func (r *repoPG) scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.AppointmentID, &inv.InvoiceNumber, &inv.ServiceDate, &inv.DueDate,
		&inv.Status, &inv.TotalCents, &inv.PaidCents, &inv.BalanceCents, &inv.SubmittedAt, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &inv, err
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	return r.InTx(ctx, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO invoices (id, patient_id, appointment_id, invoice_number, service_date,
				due_date, status, total_cents, paid_cents, balance_cents, submitted_at, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			inv.ID, inv.PatientID, inv.AppointmentID, inv.InvoiceNumber, inv.ServiceDate,
			inv.DueDate, inv.Status, inv.TotalCents, inv.PaidCents, inv.BalanceCents, inv.SubmittedAt, inv.Notes)
		if err != nil {
			return err
		}
		return r.insertLineItems(ctx, inv)
	})
}

func (r *repoPG) insertLineItems(ctx context.Context, inv *Invoice) error {
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		li.ID = uuid.New()
		li.InvoiceID = inv.ID
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO invoice_line_items (id, invoice_id, code, description, units, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			li.ID, li.InvoiceID, li.Code, li.Description, li.Units, li.UnitPriceCents)
		if err != nil {
			return fmt.Errorf("insert line item %d: %w", i, err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := r.scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if inv.LineItems, err = r.lineItems(ctx, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = r.payments(ctx, id); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repoPG) lineItems(ctx context.Context, invoiceID uuid.UUID) ([]LineItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, code, description, units, unit_price_cents
		FROM invoice_line_items WHERE invoice_id = $1 ORDER BY code ASC, id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LineItem
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.Code, &li.Description, &li.Units, &li.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func (r *repoPG) payments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, amount_cents, method, reference, received_at, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY received_at ASC, created_at ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.AmountCents, &p.Method, &p.Reference, &p.ReceivedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, inv *Invoice) error {
	return r.InTx(ctx, func(ctx context.Context) error {
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE invoices SET patient_id=$2, appointment_id=$3, service_date=$4, due_date=$5,
				status=$6, total_cents=$7, paid_cents=$8, balance_cents=$9, notes=$10, updated_at=NOW()
			WHERE id = $1`,
			inv.ID, inv.PatientID, inv.AppointmentID, inv.ServiceDate, inv.DueDate,
			inv.Status, inv.TotalCents, inv.PaidCents, inv.BalanceCents, inv.Notes)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoice_line_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		return r.insertLineItems(ctx, inv)
	})
}

func (r *repoPG) UpdateState(ctx context.Context, inv *Invoice) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET status=$2, total_cents=$3, paid_cents=$4, balance_cents=$5,
			due_date=$6, submitted_at=$7, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.Status, inv.TotalCents, inv.PaidCents, inv.BalanceCents,
		inv.DueDate, inv.SubmittedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error) {
	query := `SELECT ` + invoiceCols + ` FROM invoices WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM invoices WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, *f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY service_date DESC, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, nil
}

func (r *repoPG) AddPayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount_cents, method, reference, received_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.InvoiceID, p.AmountCents, p.Method, p.Reference, p.ReceivedAt)
	return err
}
