package clinical

import (
	"context"
	"errors"

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

const recordCols = `id, patient_id, provider_id, appointment_id, visit_date, record_type,
	chief_complaint, assessment, plan, notes, vitals, signed, signed_at, signed_by,
	created_at, updated_at`

func (r *repoPG) scanRecord(row pgx.Row) (*VisitRecord, error) {
	var rec VisitRecord
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.ProviderID, &rec.AppointmentID, &rec.VisitDate, &rec.RecordType,
		&rec.ChiefComplaint, &rec.Assessment, &rec.Plan, &rec.Notes, &rec.Vitals, &rec.Signed, &rec.SignedAt, &rec.SignedBy,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &rec, err
}

func (r *repoPG) Create(ctx context.Context, rec *VisitRecord) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinical_records (id, patient_id, provider_id, appointment_id, visit_date,
			record_type, chief_complaint, assessment, plan, notes, vitals, signed, signed_at, signed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ID, rec.PatientID, rec.ProviderID, rec.AppointmentID, rec.VisitDate,
		rec.RecordType, rec.ChiefComplaint, rec.Assessment, rec.Plan, rec.Notes, rec.Vitals,
		rec.Signed, rec.SignedAt, rec.SignedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*VisitRecord, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM clinical_records WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rec *VisitRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_records SET patient_id=$2, provider_id=$3, appointment_id=$4, visit_date=$5,
			record_type=$6, chief_complaint=$7, assessment=$8, plan=$9, notes=$10, vitals=$11,
			signed=$12, signed_at=$13, signed_by=$14, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.PatientID, rec.ProviderID, rec.AppointmentID, rec.VisitDate,
		rec.RecordType, rec.ChiefComplaint, rec.Assessment, rec.Plan, rec.Notes, rec.Vitals,
		rec.Signed, rec.SignedAt, rec.SignedBy)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinical_records WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VisitRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM clinical_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordCols+` FROM clinical_records
		WHERE patient_id = $1
		ORDER BY visit_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*VisitRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, nil
}
