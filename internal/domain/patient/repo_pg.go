package patient

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

const patientCols = `id, first_name, middle_name, last_name, date_of_birth, gender,
	email, phone_primary, phone_secondary, address_line1, address_line2, city, state,
	postal_code, emergency_contact_name, emergency_contact_phone, medical_record_number,
	active, notes, external_id, created_at, updated_at`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.MiddleName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.Email, &p.PhonePrimary, &p.PhoneSecondary, &p.AddressLine1, &p.AddressLine2, &p.City, &p.State,
		&p.PostalCode, &p.EmergencyContactName, &p.EmergencyContactPhone, &p.MedicalRecordNumber,
		&p.Active, &p.Notes, &p.ExternalID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, first_name, middle_name, last_name, date_of_birth, gender,
			email, phone_primary, phone_secondary, address_line1, address_line2, city, state,
			postal_code, emergency_contact_name, emergency_contact_phone, medical_record_number,
			active, notes, external_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.DateOfBirth, p.Gender,
		p.Email, p.PhonePrimary, p.PhoneSecondary, p.AddressLine1, p.AddressLine2, p.City, p.State,
		p.PostalCode, p.EmergencyContactName, p.EmergencyContactPhone, p.MedicalRecordNumber,
		p.Active, p.Notes, p.ExternalID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET first_name=$2, middle_name=$3, last_name=$4, date_of_birth=$5,
			gender=$6, email=$7, phone_primary=$8, phone_secondary=$9, address_line1=$10,
			address_line2=$11, city=$12, state=$13, postal_code=$14, emergency_contact_name=$15,
			emergency_contact_phone=$16, medical_record_number=$17, active=$18, notes=$19,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.DateOfBirth,
		p.Gender, p.Email, p.PhonePrimary, p.PhoneSecondary, p.AddressLine1,
		p.AddressLine2, p.City, p.State, p.PostalCode, p.EmergencyContactName,
		p.EmergencyContactPhone, p.MedicalRecordNumber, p.Active, p.Notes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patients WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patients WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["name"]; ok {
		query += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d)`, idx, idx)
		countQuery += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+p+"%")
		idx++
	}
	if p, ok := params["dob"]; ok {
		query += fmt.Sprintf(` AND date_of_birth::date = $%d`, idx)
		countQuery += fmt.Sprintf(` AND date_of_birth::date = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["phone"]; ok {
		query += fmt.Sprintf(` AND (phone_primary ILIKE $%d OR phone_secondary ILIKE $%d)`, idx, idx)
		countQuery += fmt.Sprintf(` AND (phone_primary ILIKE $%d OR phone_secondary ILIKE $%d)`, idx, idx)
		args = append(args, "%"+p+"%")
		idx++
	}
	if p, ok := params["active"]; ok {
		query += fmt.Sprintf(` AND active = $%d`, idx)
		countQuery += fmt.Sprintf(` AND active = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY last_name ASC, first_name ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *repoPG) SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE patients SET external_id=$2, updated_at=NOW() WHERE id = $1`, id, externalID)
	return err
}
