package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichub/clinic/internal/platform/db"
)

// ErrSlotTaken is returned when the exclusion constraint rejects an insert
// that raced past the read-side overlap check.
var ErrSlotTaken = errors.New("time slot already taken")

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

const apptCols = `id, code, patient_id, doctor_id, start_time, end_time, duration_min,
	reason, symptoms, status, priority, type, notes, fee, payment_status,
	created_by, updated_by, cancel_reason, cancelled_at, cancelled_by, created_at, updated_at`

func (r *repoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Code, &a.PatientID, &a.DoctorID, &a.StartTime, &a.EndTime,
		&a.DurationMin, &a.Reason, &a.Symptoms, &a.Status, &a.Priority, &a.Type, &a.Notes,
		&a.Fee, &a.PaymentStatus, &a.CreatedBy, &a.UpdatedBy, &a.CancelReason, &a.CancelledAt,
		&a.CancelledBy, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

// exclusion_violation
const sqlstateExclusion = "23P01"

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, code, patient_id, doctor_id, start_time, end_time,
			duration_min, reason, symptoms, status, priority, type, notes, fee,
			payment_status, created_by)
		VALUES ($1, 'AP' || lpad(nextval('appointment_code_seq')::text, 6, '0'),
			$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING code, created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime,
		a.DurationMin, a.Reason, a.Symptoms, a.Status, a.Priority, a.Type, a.Notes, a.Fee,
		a.PaymentStatus, a.CreatedBy,
	).Scan(&a.Code, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlstateExclusion {
			return ErrSlotTaken
		}
		return err
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET patient_id=$2, doctor_id=$3, start_time=$4, end_time=$5,
			duration_min=$6, reason=$7, symptoms=$8, priority=$9, type=$10, notes=$11,
			fee=$12, payment_status=$13, updated_by=$14, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime,
		a.DurationMin, a.Reason, a.Symptoms, a.Priority, a.Type, a.Notes,
		a.Fee, a.PaymentStatus, a.UpdatedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlstateExclusion {
			return ErrSlotTaken
		}
	}
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status=$2, cancel_reason=$3, cancelled_at=$4, cancelled_by=$5,
			updated_by=$6, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.CancelReason, a.CancelledAt, a.CancelledBy, a.UpdatedBy)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointment WHERE 1=1`
	var args []interface{}
	idx := 1

	equals := map[string]string{
		"status":   "status",
		"doctor":   "doctor_id",
		"patient":  "patient_id",
		"priority": "priority",
		"type":     "type",
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
		cond := fmt.Sprintf(` AND start_time::date = $%d::date`, idx)
		query += cond
		countQuery += cond
		args = append(args, p)
		idx++
	}
	if p, ok := params["from"]; ok {
		cond := fmt.Sprintf(` AND start_time >= $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, p)
		idx++
	}
	if p, ok := params["to"]; ok {
		cond := fmt.Sprintf(` AND start_time < $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) FindActiveOverlaps(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1
		  AND status IN ('scheduled', 'confirmed', 'in-progress')
		  AND start_time < $3 AND end_time > $2
		  AND id <> $4
		ORDER BY start_time`, doctorID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

func (r *repoPG) CalendarDay(ctx context.Context, day time.Time, doctorID uuid.UUID) ([]*Appointment, error) {
	query := `
		SELECT ` + apptCols + ` FROM appointment
		WHERE start_time::date = $1::date
		  AND status IN ('scheduled', 'confirmed', 'in-progress')`
	args := []interface{}{day}
	if doctorID != uuid.Nil {
		query += ` AND doctor_id = $2`
		args = append(args, doctorID)
	}
	query += ` ORDER BY start_time`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

func (r *repoPG) Upcoming(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Appointment, error) {
	query := `
		SELECT ` + apptCols + ` FROM appointment
		WHERE start_time >= NOW()
		  AND status IN ('scheduled', 'confirmed')`
	args := []interface{}{}
	if doctorID != uuid.Nil {
		query += ` AND doctor_id = $1 ORDER BY start_time LIMIT $2`
		args = append(args, doctorID, limit)
	} else {
		query += ` ORDER BY start_time LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

func (r *repoPG) Stats(ctx context.Context, doctorID uuid.UUID) (*Stats, error) {
	stats := &Stats{ByStatus: map[string]int{}, ByType: map[string]int{}}

	scope := ``
	args := []interface{}{}
	if doctorID != uuid.Nil {
		scope = ` AND doctor_id = $1`
		args = append(args, doctorID)
	}

	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE start_time::date = CURRENT_DATE),
			COUNT(*) FILTER (WHERE start_time >= date_trunc('week', NOW())),
			COUNT(*) FILTER (WHERE start_time >= date_trunc('month', NOW()))
		FROM appointment WHERE 1=1`+scope, args...).Scan(&stats.Today, &stats.ThisWeek, &stats.ThisMonth)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, type, COUNT(*) FROM appointment WHERE 1=1`+scope+` GROUP BY status, type`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status, typ string
		var count int
		if err := rows.Scan(&status, &typ, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] += count
		stats.ByType[typ] += count
	}
	return stats, nil
}
