package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// end_time is denormalized into its own column on every write so the
// overlap predicate stays indexable, but it is never scanned back; the
// model derives it from start_time and duration_minutes.
const apptCols = `id, patient_id, provider_id, parent_appointment_id, start_time,
	duration_minutes, appointment_type, status, urgency, chief_complaint,
	reason_for_visit, notes, room_number, location, is_telehealth, telehealth_link,
	scheduled_by, check_in_time, actual_start_time, actual_end_time, check_out_time,
	estimated_cost, copay_amount, is_recurring, recurrence_pattern, external_id,
	cancelled_at, cancellation_reason, created_at, updated_at`

func (r *repoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.ProviderID, &a.ParentAppointmentID, &a.StartTime,
		&a.DurationMinutes, &a.AppointmentType, &a.Status, &a.Urgency, &a.ChiefComplaint,
		&a.ReasonForVisit, &a.Notes, &a.RoomNumber, &a.Location, &a.IsTelehealth, &a.TelehealthLink,
		&a.ScheduledBy, &a.CheckInTime, &a.ActualStartTime, &a.ActualEndTime, &a.CheckOutTime,
		&a.EstimatedCost, &a.CopayAmount, &a.IsRecurring, &a.RecurrencePattern, &a.ExternalID,
		&a.CancelledAt, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, parent_appointment_id,
			start_time, end_time, duration_minutes, appointment_type, status, urgency,
			chief_complaint, reason_for_visit, notes, room_number, location,
			is_telehealth, telehealth_link, scheduled_by, estimated_cost, copay_amount,
			is_recurring, recurrence_pattern, external_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		a.ID, a.PatientID, a.ProviderID, a.ParentAppointmentID,
		a.StartTime, a.EndTime(), a.DurationMinutes, a.AppointmentType, a.Status, a.Urgency,
		a.ChiefComplaint, a.ReasonForVisit, a.Notes, a.RoomNumber, a.Location,
		a.IsTelehealth, a.TelehealthLink, a.ScheduledBy, a.EstimatedCost, a.CopayAmount,
		a.IsRecurring, a.RecurrencePattern, a.ExternalID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET patient_id=$2, provider_id=$3, parent_appointment_id=$4,
			start_time=$5, end_time=$6, duration_minutes=$7, appointment_type=$8, status=$9,
			urgency=$10, chief_complaint=$11, reason_for_visit=$12, notes=$13, room_number=$14,
			location=$15, is_telehealth=$16, telehealth_link=$17, scheduled_by=$18,
			check_in_time=$19, actual_start_time=$20, actual_end_time=$21, check_out_time=$22,
			estimated_cost=$23, copay_amount=$24, is_recurring=$25, recurrence_pattern=$26,
			cancelled_at=$27, cancellation_reason=$28, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, a.ProviderID, a.ParentAppointmentID,
		a.StartTime, a.EndTime(), a.DurationMinutes, a.AppointmentType, a.Status,
		a.Urgency, a.ChiefComplaint, a.ReasonForVisit, a.Notes, a.RoomNumber,
		a.Location, a.IsTelehealth, a.TelehealthLink, a.ScheduledBy,
		a.CheckInTime, a.ActualStartTime, a.ActualEndTime, a.CheckOutTime,
		a.EstimatedCost, a.CopayAmount, a.IsRecurring, a.RecurrencePattern,
		a.CancelledAt, a.CancellationReason)
	return err
}

func (r *repoPG) ListByDateRange(ctx context.Context, from, to time.Time, f ListFilter) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE start_time >= $1 AND start_time < $2`
	args := []interface{}{from, to}
	idx := 3

	if f.ProviderID != nil {
		query += fmt.Sprintf(` AND provider_id = $%d`, idx)
		args = append(args, *f.ProviderID)
		idx++
	}
	if f.PatientID != nil {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, *f.Status)
		idx++
	}
	query += ` ORDER BY start_time ASC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *repoPG) ListOverlapping(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointments
		WHERE provider_id = $1
		  AND status IN ('scheduled','confirmed','checked_in','in_progress')
		  AND start_time < $3 AND end_time > $2`
	args := []interface{}{providerID, start, end}
	if excludeID != nil {
		query += ` AND id != $4`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *repoPG) collect(rows pgx.Rows) ([]*Appointment, error) {
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) CountByPatientAndProvider(ctx context.Context, patientID, providerID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE patient_id = $1 AND provider_id = $2`,
		patientID, providerID).Scan(&n)
	return n, err
}

func (r *repoPG) SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE appointments SET external_id=$2, updated_at=NOW() WHERE id = $1`, id, externalID)
	return err
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

// LockProviderCalendar takes a transaction-scoped advisory lock keyed on
// the provider id, so two concurrent bookings for the same provider
// serialize while bookings for different providers proceed in parallel.
func (r *repoPG) LockProviderCalendar(ctx context.Context, providerID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, providerID.String())
	return err
}
