package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) PatientTotal(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE active = true`).Scan(&total)
	return total, err
}

func (r *repoPG) ActiveDoctors(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM app_user WHERE active = true AND role = 'doctor'`).Scan(&total)
	return total, err
}

// scope appends a doctor filter as the next positional argument.
func scope(query string, doctorID uuid.UUID, args []interface{}) (string, []interface{}) {
	if doctorID == uuid.Nil {
		return query, args
	}
	return query + ` AND doctor_id = $1`, append(args, doctorID)
}

func (r *repoPG) AppointmentCounts(ctx context.Context, doctorID uuid.UUID) (*AppointmentCounts, error) {
	query, args := scope(`
		SELECT COUNT(*) FILTER (WHERE start_time::date = CURRENT_DATE),
			COUNT(*) FILTER (WHERE start_time >= date_trunc('month', NOW())),
			COUNT(*) FILTER (WHERE status IN ('scheduled', 'confirmed'))
		FROM appointment WHERE true`, doctorID, nil)
	var c AppointmentCounts
	err := r.pool.QueryRow(ctx, query, args...).Scan(&c.Today, &c.ThisMonth, &c.Pending)
	return &c, err
}

func (r *repoPG) RecordCounts(ctx context.Context, doctorID uuid.UUID) (*CountPair, error) {
	query, args := scope(`
		SELECT COUNT(*) FILTER (WHERE visit_date::date = CURRENT_DATE),
			COUNT(*) FILTER (WHERE visit_date >= date_trunc('month', NOW()))
		FROM medical_record WHERE active = true`, doctorID, nil)
	var c CountPair
	err := r.pool.QueryRow(ctx, query, args...).Scan(&c.Today, &c.ThisMonth)
	return &c, err
}

func (r *repoPG) PrescriptionCounts(ctx context.Context, doctorID uuid.UUID) (*CountPair, error) {
	query, args := scope(`
		SELECT COUNT(*) FILTER (WHERE prescription_date::date = CURRENT_DATE),
			COUNT(*) FILTER (WHERE prescription_date >= date_trunc('month', NOW()))
		FROM prescription WHERE active = true`, doctorID, nil)
	var c CountPair
	err := r.pool.QueryRow(ctx, query, args...).Scan(&c.Today, &c.ThisMonth)
	return &c, err
}

func (r *repoPG) Revenue(ctx context.Context, doctorID uuid.UUID) (*RevenueCounts, error) {
	query, args := scope(`
		SELECT COALESCE(SUM(total_amount) FILTER (WHERE prescription_date::date = CURRENT_DATE), 0),
			COALESCE(SUM(total_amount) FILTER (WHERE prescription_date >= date_trunc('month', NOW())), 0)
		FROM prescription WHERE active = true AND status <> 'cancelled'`, doctorID, nil)
	var rev RevenueCounts
	err := r.pool.QueryRow(ctx, query, args...).Scan(&rev.Today, &rev.ThisMonth)
	return &rev, err
}

func (r *repoPG) InventoryAlerts(ctx context.Context) (*InventoryAlerts, error) {
	var a InventoryAlerts
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE stock_quantity <= min_quantity),
			COUNT(*) FILTER (WHERE expiry_date < NOW())
		FROM medicine WHERE active = true`).Scan(&a.LowStock, &a.Expired)
	return &a, err
}

func (r *repoPG) DailyAppointments(ctx context.Context, from, to time.Time, doctorID uuid.UUID) ([]DailyCount, error) {
	query := `
		SELECT d::date, COUNT(a.id)
		FROM generate_series($1::date, $2::date, interval '1 day') d
		LEFT JOIN appointment a ON a.start_time::date = d::date`
	args := []interface{}{from, to}
	if doctorID != uuid.Nil {
		query += ` AND a.doctor_id = $3`
		args = append(args, doctorID)
	}
	query += ` GROUP BY d::date ORDER BY d::date`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []DailyCount
	for rows.Next() {
		var c DailyCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *repoPG) MonthlyRevenue(ctx context.Context, months int, doctorID uuid.UUID) ([]MonthlyRevenue, error) {
	query := `
		SELECT m, COALESCE(SUM(p.total_amount), 0)
		FROM generate_series(
			date_trunc('month', NOW()) - ($1 - 1) * interval '1 month',
			date_trunc('month', NOW()), interval '1 month') m
		LEFT JOIN prescription p ON date_trunc('month', p.prescription_date) = m
			AND p.active = true AND p.status <> 'cancelled'`
	args := []interface{}{months}
	if doctorID != uuid.Nil {
		query += ` AND p.doctor_id = $2`
		args = append(args, doctorID)
	}
	query += ` GROUP BY m ORDER BY m`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var revenue []MonthlyRevenue
	for rows.Next() {
		var m MonthlyRevenue
		if err := rows.Scan(&m.Month, &m.Revenue); err != nil {
			return nil, err
		}
		revenue = append(revenue, m)
	}
	return revenue, rows.Err()
}

func (r *repoPG) UpcomingAppointments(ctx context.Context, doctorID uuid.UUID, limit int) ([]UpcomingAppointment, error) {
	query := `
		SELECT a.id, a.code, p.full_name, u.full_name, a.start_time, a.type, a.status
		FROM appointment a
		JOIN patient p ON p.id = a.patient_id
		JOIN app_user u ON u.id = a.doctor_id
		WHERE a.start_time >= NOW()
		  AND a.status IN ('scheduled', 'confirmed')`
	args := []interface{}{}
	if doctorID != uuid.Nil {
		query += ` AND a.doctor_id = $1 ORDER BY a.start_time LIMIT $2`
		args = append(args, doctorID, limit)
	} else {
		query += ` ORDER BY a.start_time LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UpcomingAppointment
	for rows.Next() {
		var u UpcomingAppointment
		if err := rows.Scan(&u.ID, &u.Code, &u.PatientName, &u.DoctorName, &u.StartTime, &u.Type, &u.Status); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
