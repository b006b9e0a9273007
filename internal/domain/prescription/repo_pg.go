package prescription

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

const prescriptionCols = `id, code, patient_id, doctor_id, record_id, prescription_date,
	diagnosis, symptoms, instructions, follow_up_date, total_amount, status, priority,
	valid_until, notes, pharmacy_notes, active, issued_by, issued_at,
	cancel_reason, cancelled_by, cancelled_at, created_by, created_at, updated_at`

func (r *repoPG) scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.Code, &p.PatientID, &p.DoctorID, &p.RecordID, &p.PrescriptionDate,
		&p.Diagnosis, &p.Symptoms, &p.Instructions, &p.FollowUpDate, &p.TotalAmount,
		&p.Status, &p.Priority, &p.ValidUntil, &p.Notes, &p.PharmacyNotes, &p.Active,
		&p.IssuedBy, &p.IssuedAt, &p.CancelReason, &p.CancelledBy, &p.CancelledAt,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, code, patient_id, doctor_id, record_id, prescription_date,
			diagnosis, symptoms, instructions, follow_up_date, total_amount, status, priority,
			valid_until, notes, issued_by, issued_at, created_by)
		VALUES ($1, 'RX' || lpad(nextval('prescription_code_seq')::text, 6, '0'),
			$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING code, active, created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.RecordID, p.PrescriptionDate,
		p.Diagnosis, p.Symptoms, p.Instructions, p.FollowUpDate, p.TotalAmount,
		p.Status, p.Priority, p.ValidUntil, p.Notes, p.IssuedBy, p.IssuedAt, p.CreatedBy,
	).Scan(&p.Code, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertLines(ctx, p)
}

func (r *repoPG) insertLines(ctx context.Context, p *Prescription) error {
	for i := range p.Medications {
		m := &p.Medications[i]
		m.ID = uuid.New()
		m.PrescriptionID = p.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO prescription_medication (id, prescription_id, medicine_id, medicine_name,
				dosage, frequency, duration, quantity, unit_price, total,
				instructions, meal_timing, warnings)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			m.ID, m.PrescriptionID, m.MedicineID, m.MedicineName,
			m.Dosage, m.Frequency, m.Duration, m.Quantity, m.UnitPrice, m.Total,
			m.Instructions, m.MealTiming, m.Warnings); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadLines(ctx context.Context, p *Prescription) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, medicine_id, medicine_name, dosage, frequency, duration,
			quantity, unit_price, total, instructions, meal_timing, warnings,
			dispensed, dispensed_at, dispensed_by
		FROM prescription_medication WHERE prescription_id = $1 ORDER BY medicine_name`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m MedicationItem
		if err := rows.Scan(&m.ID, &m.PrescriptionID, &m.MedicineID, &m.MedicineName,
			&m.Dosage, &m.Frequency, &m.Duration, &m.Quantity, &m.UnitPrice, &m.Total,
			&m.Instructions, &m.MealTiming, &m.Warnings,
			&m.Dispensed, &m.DispensedAt, &m.DispensedBy); err != nil {
			return err
		}
		p.Medications = append(p.Medications, m)
	}
	return rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := r.scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+prescriptionCols+` FROM prescription WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET prescription_date=$2, diagnosis=$3, symptoms=$4,
			instructions=$5, follow_up_date=$6, total_amount=$7, priority=$8,
			valid_until=$9, notes=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.PrescriptionDate, p.Diagnosis, p.Symptoms,
		p.Instructions, p.FollowUpDate, p.TotalAmount, p.Priority,
		p.ValidUntil, p.Notes)
	if err != nil {
		return err
	}

	// Lines are replaced wholesale. The service only allows this before any
	// line has been dispensed.
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescription_medication WHERE prescription_id = $1`, p.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, p)
}

func (r *repoPG) UpdateStatus(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET status=$2, issued_by=$3, issued_at=$4,
			cancel_reason=$5, cancelled_by=$6, cancelled_at=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Status, p.IssuedBy, p.IssuedAt,
		p.CancelReason, p.CancelledBy, p.CancelledAt)
	return err
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE prescription SET active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	return err
}

func (r *repoPG) MarkLineDispensed(ctx context.Context, lineID uuid.UUID, actor uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription_medication SET dispensed = true, dispensed_at = $2, dispensed_by = $3
		WHERE id = $1 AND dispensed = false`,
		lineID, at, actor)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) SetPharmacyNotes(ctx context.Context, id uuid.UUID, notes *string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE prescription SET pharmacy_notes=$2, updated_at=NOW() WHERE id = $1`, id, notes)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	query := `SELECT ` + prescriptionCols + ` FROM prescription WHERE active = true`
	countQuery := `SELECT COUNT(*) FROM prescription WHERE active = true`
	var args []interface{}
	idx := 1

	equals := map[string]string{
		"status":   "status",
		"doctor":   "doctor_id",
		"patient":  "patient_id",
		"priority": "priority",
	}
	for param, col := range equals {
		if p, ok := params[param]; ok {
			query += fmt.Sprintf(` AND %s = $%d`, col, idx)
			countQuery += fmt.Sprintf(` AND %s = $%d`, col, idx)
			args = append(args, p)
			idx++
		}
	}
	if p, ok := params["date"]; ok {
		cond := fmt.Sprintf(` AND prescription_date::date = $%d::date`, idx)
		query += cond
		countQuery += cond
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY prescription_date DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := r.scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	rows.Close()

	for _, p := range items {
		if err := r.loadLines(ctx, p); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *repoPG) PatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.Search(ctx, map[string]string{"patient": patientID.String()}, limit, offset)
}

func (r *repoPG) Stats(ctx context.Context, doctorID uuid.UUID) (*Stats, error) {
	stats := &Stats{ByStatus: map[string]int{}}

	scope := ``
	args := []interface{}{}
	if doctorID != uuid.Nil {
		scope = ` AND doctor_id = $1`
		args = append(args, doctorID)
	}

	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE prescription_date::date = CURRENT_DATE),
			COUNT(*) FILTER (WHERE prescription_date >= date_trunc('month', NOW())),
			COALESCE(SUM(total_amount) FILTER (WHERE status <> 'cancelled'), 0)
		FROM prescription WHERE active = true`+scope, args...).
		Scan(&stats.Total, &stats.Today, &stats.ThisMonth, &stats.Revenue)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM prescription WHERE active = true`+scope+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
	}
	rows.Close()

	usageScope := ``
	if doctorID != uuid.Nil {
		usageScope = ` AND p.doctor_id = $1`
	}
	rows, err = r.conn(ctx).Query(ctx, `
		SELECT m.medicine_name, COUNT(*), SUM(m.quantity)
		FROM prescription_medication m
		JOIN prescription p ON p.id = m.prescription_id
		WHERE p.active = true AND p.status <> 'cancelled'`+usageScope+`
		GROUP BY m.medicine_name ORDER BY COUNT(*) DESC LIMIT 5`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u MedicineUsage
		if err := rows.Scan(&u.MedicineName, &u.Count, &u.Quantity); err != nil {
			return nil, err
		}
		stats.MostPrescribed = append(stats.MostPrescribed, u)
	}
	return stats, rows.Err()
}
