package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, code, full_name, date_of_birth, gender, phone, email, address,
	identity_card, insurance_number, emergency_name, emergency_relation, emergency_phone,
	medical_history, allergies, blood_type, height_cm, weight_kg, notes, active,
	created_by, last_visit, total_visits, created_at, updated_at`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Code, &p.FullName, &p.DateOfBirth, &p.Gender, &p.Phone, &p.Email,
		&p.Address, &p.IdentityCard, &p.InsuranceNumber, &p.EmergencyName, &p.EmergencyRelation,
		&p.EmergencyPhone, &p.MedicalHistory, &p.Allergies, &p.BloodType, &p.HeightCm, &p.WeightKg,
		&p.Notes, &p.Active, &p.CreatedBy, &p.LastVisit, &p.TotalVisits, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, code, full_name, date_of_birth, gender, phone, email, address,
			identity_card, insurance_number, emergency_name, emergency_relation, emergency_phone,
			medical_history, allergies, blood_type, height_cm, weight_kg, notes, created_by)
		VALUES ($1, 'PT' || lpad(nextval('patient_code_seq')::text, 6, '0'),
			$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING code, active, total_visits, created_at, updated_at`,
		p.ID, p.FullName, p.DateOfBirth, p.Gender, p.Phone, p.Email, p.Address,
		p.IdentityCard, p.InsuranceNumber, p.EmergencyName, p.EmergencyRelation, p.EmergencyPhone,
		p.MedicalHistory, p.Allergies, p.BloodType, p.HeightCm, p.WeightKg, p.Notes, p.CreatedBy,
	).Scan(&p.Code, &p.Active, &p.TotalVisits, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE code = $1`, code))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET full_name=$2, date_of_birth=$3, gender=$4, phone=$5, email=$6,
			address=$7, identity_card=$8, insurance_number=$9, emergency_name=$10,
			emergency_relation=$11, emergency_phone=$12, medical_history=$13, allergies=$14,
			blood_type=$15, height_cm=$16, weight_kg=$17, notes=$18, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FullName, p.DateOfBirth, p.Gender, p.Phone, p.Email,
		p.Address, p.IdentityCard, p.InsuranceNumber, p.EmergencyName,
		p.EmergencyRelation, p.EmergencyPhone, p.MedicalHistory, p.Allergies,
		p.BloodType, p.HeightCm, p.WeightKg, p.Notes)
	return err
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE patient SET active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patient WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patient WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["q"]; ok {
		cond := fmt.Sprintf(` AND (full_name ILIKE $%d OR code ILIKE $%d OR phone LIKE $%d)`, idx, idx, idx)
		query += cond
		countQuery += cond
		args = append(args, "%"+p+"%")
		idx++
	}
	if p, ok := params["gender"]; ok {
		query += fmt.Sprintf(` AND gender = $%d`, idx)
		countQuery += fmt.Sprintf(` AND gender = $%d`, idx)
		args = append(args, p)
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

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
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

func (r *repoPG) QuickSearch(ctx context.Context, q string, limit int) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE active = true AND (full_name ILIKE $1 OR code ILIKE $1 OR phone LIKE $1)
		ORDER BY full_name LIMIT $2`, q+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

func (r *repoPG) RecordVisit(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET total_visits = total_visits + 1, last_visit = $2, updated_at = NOW()
		WHERE id = $1`, id, at)
	return err
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByGender: map[string]int{}}

	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= date_trunc('month', NOW()))
		FROM patient WHERE active = true`).Scan(&stats.Total, &stats.NewThisMonth)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT gender, COUNT(*) FROM patient WHERE active = true GROUP BY gender`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var gender string
		var count int
		if err := rows.Scan(&gender, &count); err != nil {
			return nil, err
		}
		stats.ByGender[gender] = count
	}
	return stats, nil
}
