package provider

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

const providerCols = `id, first_name, last_name, title, specialty, npi_number,
	license_number, email, phone, department, status, accepting_new_patients,
	default_appointment_duration, working_hours, bio, external_id, created_at, updated_at`

func (r *repoPG) scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Title, &p.Specialty, &p.NPINumber,
		&p.LicenseNumber, &p.Email, &p.Phone, &p.Department, &p.Status, &p.AcceptingNewPatients,
		&p.DefaultDurationMins, &p.WorkingHours, &p.Bio, &p.ExternalID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Provider) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO providers (id, first_name, last_name, title, specialty, npi_number,
			license_number, email, phone, department, status, accepting_new_patients,
			default_appointment_duration, working_hours, bio, external_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.FirstName, p.LastName, p.Title, p.Specialty, p.NPINumber,
		p.LicenseNumber, p.Email, p.Phone, p.Department, p.Status, p.AcceptingNewPatients,
		p.DefaultDurationMins, p.WorkingHours, p.Bio, p.ExternalID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return r.scanProvider(r.conn(ctx).QueryRow(ctx, `SELECT `+providerCols+` FROM providers WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Provider) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE providers SET first_name=$2, last_name=$3, title=$4, specialty=$5, npi_number=$6,
			license_number=$7, email=$8, phone=$9, department=$10, status=$11,
			accepting_new_patients=$12, default_appointment_duration=$13, working_hours=$14,
			bio=$15, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Title, p.Specialty, p.NPINumber,
		p.LicenseNumber, p.Email, p.Phone, p.Department, p.Status,
		p.AcceptingNewPatients, p.DefaultDurationMins, p.WorkingHours, p.Bio)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Provider, int, error) {
	query := `SELECT ` + providerCols + ` FROM providers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM providers WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["specialty"]; ok {
		query += fmt.Sprintf(` AND specialty ILIKE $%d`, idx)
		countQuery += fmt.Sprintf(` AND specialty ILIKE $%d`, idx)
		args = append(args, "%"+p+"%")
		idx++
	}
	if p, ok := params["accepting"]; ok {
		query += fmt.Sprintf(` AND accepting_new_patients = $%d`, idx)
		countQuery += fmt.Sprintf(` AND accepting_new_patients = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["name"]; ok {
		query += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d)`, idx, idx)
		countQuery += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+p+"%")
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
	var items []*Provider
	for rows.Next() {
		p, err := r.scanProvider(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *repoPG) SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE providers SET external_id=$2, updated_at=NOW() WHERE id = $1`, id, externalID)
	return err
}
