package record

import (
	"context"
	"fmt"

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

const recordCols = `id, code, patient_id, doctor_id, appointment_id, visit_date, visit_type,
	chief_complaint, present_illness, symptoms,
	vs_temperature_c, vs_bp_systolic, vs_bp_diastolic, vs_heart_rate, vs_respiratory_rate,
	vs_weight_kg, vs_height_cm, vs_bmi, vs_spo2,
	physical_exam, diagnosis_primary, diagnosis_secondary, icd10_code, severity,
	treatment_plan, referral, follow_up_required, follow_up_date, follow_up_notes,
	consultation_fee, billing_total, status, notes, active, created_by,
	reviewed_by, reviewed_at, created_at, updated_at`

func (r *repoPG) scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := row.Scan(&rec.ID, &rec.Code, &rec.PatientID, &rec.DoctorID, &rec.AppointmentID,
		&rec.VisitDate, &rec.VisitType, &rec.ChiefComplaint, &rec.PresentIllness, &rec.Symptoms,
		&rec.VitalSigns.TemperatureC, &rec.VitalSigns.BPSystolic, &rec.VitalSigns.BPDiastolic,
		&rec.VitalSigns.HeartRate, &rec.VitalSigns.RespiratoryRate, &rec.VitalSigns.WeightKg,
		&rec.VitalSigns.HeightCm, &rec.VitalSigns.BMI, &rec.VitalSigns.SpO2,
		&rec.PhysicalExam, &rec.DiagnosisPrimary, &rec.DiagnosisSecondary, &rec.ICD10Code,
		&rec.Severity, &rec.TreatmentPlan, &rec.Referral, &rec.FollowUpRequired,
		&rec.FollowUpDate, &rec.FollowUpNotes, &rec.ConsultationFee, &rec.BillingTotal,
		&rec.Status, &rec.Notes, &rec.Active, &rec.CreatedBy, &rec.ReviewedBy, &rec.ReviewedAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	return &rec, err
}

func (r *repoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (id, code, patient_id, doctor_id, appointment_id, visit_date,
			visit_type, chief_complaint, present_illness, symptoms,
			vs_temperature_c, vs_bp_systolic, vs_bp_diastolic, vs_heart_rate, vs_respiratory_rate,
			vs_weight_kg, vs_height_cm, vs_bmi, vs_spo2,
			physical_exam, diagnosis_primary, diagnosis_secondary, icd10_code, severity,
			treatment_plan, referral, follow_up_required, follow_up_date, follow_up_notes,
			consultation_fee, billing_total, status, notes, created_by)
		VALUES ($1, 'MR' || lpad(nextval('record_code_seq')::text, 6, '0'),
			$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,
			$24,$25,$26,$27,$28,$29,$30,$31,$32,$33)
		RETURNING code, active, created_at, updated_at`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.AppointmentID, rec.VisitDate,
		rec.VisitType, rec.ChiefComplaint, rec.PresentIllness, rec.Symptoms,
		rec.VitalSigns.TemperatureC, rec.VitalSigns.BPSystolic, rec.VitalSigns.BPDiastolic,
		rec.VitalSigns.HeartRate, rec.VitalSigns.RespiratoryRate, rec.VitalSigns.WeightKg,
		rec.VitalSigns.HeightCm, rec.VitalSigns.BMI, rec.VitalSigns.SpO2,
		rec.PhysicalExam, rec.DiagnosisPrimary, rec.DiagnosisSecondary, rec.ICD10Code,
		rec.Severity, rec.TreatmentPlan, rec.Referral, rec.FollowUpRequired,
		rec.FollowUpDate, rec.FollowUpNotes, rec.ConsultationFee, rec.BillingTotal,
		rec.Status, rec.Notes, rec.CreatedBy,
	).Scan(&rec.Code, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertLines(ctx, rec)
}

func (r *repoPG) insertLines(ctx context.Context, rec *MedicalRecord) error {
	for i := range rec.Investigations {
		inv := &rec.Investigations[i]
		inv.ID = uuid.New()
		inv.RecordID = rec.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO record_investigation (id, record_id, type, name, result, notes, performed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			inv.ID, inv.RecordID, inv.Type, inv.Name, inv.Result, inv.Notes, inv.PerformedAt); err != nil {
			return err
		}
	}
	for i := range rec.Procedures {
		p := &rec.Procedures[i]
		p.ID = uuid.New()
		p.RecordID = rec.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO record_procedure (id, record_id, name, description, fee)
			VALUES ($1,$2,$3,$4,$5)`,
			p.ID, p.RecordID, p.Name, p.Description, p.Fee); err != nil {
			return err
		}
	}
	for i := range rec.Medications {
		m := &rec.Medications[i]
		m.ID = uuid.New()
		m.RecordID = rec.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO record_medication (id, record_id, name, dosage, frequency, duration, quantity, unit_price, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			m.ID, m.RecordID, m.Name, m.Dosage, m.Frequency, m.Duration, m.Quantity, m.UnitPrice, m.Total); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadLines(ctx context.Context, rec *MedicalRecord) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, record_id, type, name, result, notes, performed_at
		FROM record_investigation WHERE record_id = $1 ORDER BY performed_at NULLS LAST`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var inv Investigation
		if err := rows.Scan(&inv.ID, &inv.RecordID, &inv.Type, &inv.Name, &inv.Result, &inv.Notes, &inv.PerformedAt); err != nil {
			return err
		}
		rec.Investigations = append(rec.Investigations, inv)
	}
	rows.Close()

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT id, record_id, name, description, fee FROM record_procedure WHERE record_id = $1`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p Procedure
		if err := rows.Scan(&p.ID, &p.RecordID, &p.Name, &p.Description, &p.Fee); err != nil {
			return err
		}
		rec.Procedures = append(rec.Procedures, p)
	}
	rows.Close()

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT id, record_id, name, dosage, frequency, duration, quantity, unit_price, total
		FROM record_medication WHERE record_id = $1`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m MedicationLine
		if err := rows.Scan(&m.ID, &m.RecordID, &m.Name, &m.Dosage, &m.Frequency, &m.Duration, &m.Quantity, &m.UnitPrice, &m.Total); err != nil {
			return err
		}
		rec.Medications = append(rec.Medications, m)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	rec, err := r.scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) Update(ctx context.Context, rec *MedicalRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET visit_date=$2, visit_type=$3, chief_complaint=$4,
			present_illness=$5, symptoms=$6,
			vs_temperature_c=$7, vs_bp_systolic=$8, vs_bp_diastolic=$9, vs_heart_rate=$10,
			vs_respiratory_rate=$11, vs_weight_kg=$12, vs_height_cm=$13, vs_bmi=$14, vs_spo2=$15,
			physical_exam=$16, diagnosis_primary=$17, diagnosis_secondary=$18, icd10_code=$19,
			severity=$20, treatment_plan=$21, referral=$22, follow_up_required=$23,
			follow_up_date=$24, follow_up_notes=$25, consultation_fee=$26, billing_total=$27,
			notes=$28, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.VisitDate, rec.VisitType, rec.ChiefComplaint,
		rec.PresentIllness, rec.Symptoms,
		rec.VitalSigns.TemperatureC, rec.VitalSigns.BPSystolic, rec.VitalSigns.BPDiastolic,
		rec.VitalSigns.HeartRate, rec.VitalSigns.RespiratoryRate, rec.VitalSigns.WeightKg,
		rec.VitalSigns.HeightCm, rec.VitalSigns.BMI, rec.VitalSigns.SpO2,
		rec.PhysicalExam, rec.DiagnosisPrimary, rec.DiagnosisSecondary, rec.ICD10Code,
		rec.Severity, rec.TreatmentPlan, rec.Referral, rec.FollowUpRequired,
		rec.FollowUpDate, rec.FollowUpNotes, rec.ConsultationFee, rec.BillingTotal,
		rec.Notes)
	if err != nil {
		return err
	}

	// Lines are replaced wholesale on update.
	for _, table := range []string{"record_investigation", "record_procedure", "record_medication"} {
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+table+` WHERE record_id = $1`, rec.ID); err != nil {
			return err
		}
	}
	return r.insertLines(ctx, rec)
}

func (r *repoPG) UpdateStatus(ctx context.Context, rec *MedicalRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET status=$2, reviewed_by=$3, reviewed_at=$4, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.Status, rec.ReviewedBy, rec.ReviewedAt)
	return err
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE medical_record SET active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	return err
}

func (r *repoPG) AddInvestigation(ctx context.Context, inv *Investigation) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO record_investigation (id, record_id, type, name, result, notes, performed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		inv.ID, inv.RecordID, inv.Type, inv.Name, inv.Result, inv.Notes, inv.PerformedAt)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*MedicalRecord, int, error) {
	query := `SELECT ` + recordCols + ` FROM medical_record WHERE active = true`
	countQuery := `SELECT COUNT(*) FROM medical_record WHERE active = true`
	var args []interface{}
	idx := 1

	equals := map[string]string{
		"status":  "status",
		"doctor":  "doctor_id",
		"patient": "patient_id",
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
		cond := fmt.Sprintf(` AND visit_date::date = $%d::date`, idx)
		query += cond
		countQuery += cond
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY visit_date DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, nil
}

func (r *repoPG) PatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
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
			COUNT(*) FILTER (WHERE visit_date::date = CURRENT_DATE),
			COUNT(*) FILTER (WHERE visit_date >= date_trunc('month', NOW()))
		FROM medical_record WHERE active = true`+scope, args...).Scan(&stats.Total, &stats.Today, &stats.ThisMonth)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM medical_record WHERE active = true`+scope+` GROUP BY status`, args...)
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
	return stats, nil
}
