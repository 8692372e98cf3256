package insurance

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

const policyCols = `id, patient_id, insurance_type, payer_name, payer_id, plan_name, plan_type,
	member_id, group_number, policy_number, subscriber_name, subscriber_relation,
	effective_date, termination_date, verification_status, verified_at,
	copay_cents, deductible_cents, notes, created_at, updated_at`

func (r *repoPG) scanPolicy(row pgx.Row) (*Policy, error) {
	var p Policy
	err := row.Scan(&p.ID, &p.PatientID, &p.InsuranceType, &p.PayerName, &p.PayerID, &p.PlanName, &p.PlanType,
		&p.MemberID, &p.GroupNumber, &p.PolicyNumber, &p.SubscriberName, &p.SubscriberRelation,
		&p.EffectiveDate, &p.TerminationDate, &p.VerificationStatus, &p.VerifiedAt,
		&p.CopayCents, &p.DeductibleCents, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Policy) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO insurance_policies (id, patient_id, insurance_type, payer_name, payer_id,
			plan_name, plan_type, member_id, group_number, policy_number, subscriber_name,
			subscriber_relation, effective_date, termination_date, verification_status,
			verified_at, copay_cents, deductible_cents, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		p.ID, p.PatientID, p.InsuranceType, p.PayerName, p.PayerID,
		p.PlanName, p.PlanType, p.MemberID, p.GroupNumber, p.PolicyNumber, p.SubscriberName,
		p.SubscriberRelation, p.EffectiveDate, p.TerminationDate, p.VerificationStatus,
		p.VerifiedAt, p.CopayCents, p.DeductibleCents, p.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Policy, error) {
	return r.scanPolicy(r.conn(ctx).QueryRow(ctx, `SELECT `+policyCols+` FROM insurance_policies WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Policy) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE insurance_policies SET patient_id=$2, insurance_type=$3, payer_name=$4, payer_id=$5,
			plan_name=$6, plan_type=$7, member_id=$8, group_number=$9, policy_number=$10,
			subscriber_name=$11, subscriber_relation=$12, effective_date=$13, termination_date=$14,
			verification_status=$15, verified_at=$16, copay_cents=$17, deductible_cents=$18,
			notes=$19, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.PatientID, p.InsuranceType, p.PayerName, p.PayerID,
		p.PlanName, p.PlanType, p.MemberID, p.GroupNumber, p.PolicyNumber,
		p.SubscriberName, p.SubscriberRelation, p.EffectiveDate, p.TerminationDate,
		p.VerificationStatus, p.VerifiedAt, p.CopayCents, p.DeductibleCents, p.Notes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM insurance_policies WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Policy, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM insurance_policies WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+policyCols+` FROM insurance_policies
		WHERE patient_id = $1
		ORDER BY insurance_type ASC, created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Policy
	for rows.Next() {
		p, err := r.scanPolicy(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}
