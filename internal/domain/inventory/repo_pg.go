package inventory

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

const medicineCols = `id, name, generic_name, brand, category, dosage_form, strength, unit,
	manufacturer, batch_number, manufacturing_date, expiry_date, price, cost_price,
	stock_quantity, min_quantity, max_quantity, prescription_required, controlled,
	storage, active, tags, created_by, updated_by, created_at, updated_at`

func (r *repoPG) scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.GenericName, &m.Brand, &m.Category, &m.DosageForm,
		&m.Strength, &m.Unit, &m.Manufacturer, &m.BatchNumber, &m.ManufacturingDate,
		&m.ExpiryDate, &m.Price, &m.CostPrice, &m.StockQuantity, &m.MinQuantity,
		&m.MaxQuantity, &m.PrescriptionRequired, &m.Controlled, &m.Storage, &m.Active,
		&m.Tags, &m.CreatedBy, &m.UpdatedBy, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicine (id, name, generic_name, brand, category, dosage_form, strength,
			unit, manufacturer, batch_number, manufacturing_date, expiry_date, price, cost_price,
			stock_quantity, min_quantity, max_quantity, prescription_required, controlled,
			storage, tags, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		RETURNING active, created_at, updated_at`,
		m.ID, m.Name, m.GenericName, m.Brand, m.Category, m.DosageForm, m.Strength,
		m.Unit, m.Manufacturer, m.BatchNumber, m.ManufacturingDate, m.ExpiryDate,
		m.Price, m.CostPrice, m.StockQuantity, m.MinQuantity, m.MaxQuantity,
		m.PrescriptionRequired, m.Controlled, m.Storage, m.Tags, m.CreatedBy,
	).Scan(&m.Active, &m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return r.scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medicineCols+` FROM medicine WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *Medicine) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine SET name=$2, generic_name=$3, brand=$4, category=$5, dosage_form=$6,
			strength=$7, unit=$8, manufacturer=$9, batch_number=$10, manufacturing_date=$11,
			expiry_date=$12, price=$13, cost_price=$14, min_quantity=$15, max_quantity=$16,
			prescription_required=$17, controlled=$18, storage=$19, tags=$20, updated_by=$21,
			updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.GenericName, m.Brand, m.Category, m.DosageForm,
		m.Strength, m.Unit, m.Manufacturer, m.BatchNumber, m.ManufacturingDate,
		m.ExpiryDate, m.Price, m.CostPrice, m.MinQuantity, m.MaxQuantity,
		m.PrescriptionRequired, m.Controlled, m.Storage, m.Tags, m.UpdatedBy)
	return err
}

func (r *repoPG) SetStock(ctx context.Context, id uuid.UUID, quantity int, updatedBy uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine SET stock_quantity=$2, updated_by=$3, updated_at=NOW() WHERE id = $1`,
		id, quantity, updatedBy)
	return err
}

func (r *repoPG) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2`, id, quantity)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE medicine SET active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	return err
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Medicine, int, error) {
	query := `SELECT ` + medicineCols + ` FROM medicine WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM medicine WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["q"]; ok {
		cond := fmt.Sprintf(` AND (name ILIKE $%d OR generic_name ILIKE $%d OR brand ILIKE $%d)`, idx, idx, idx)
		query += cond
		countQuery += cond
		args = append(args, "%"+p+"%")
		idx++
	}
	if p, ok := params["category"]; ok {
		query += fmt.Sprintf(` AND category = $%d`, idx)
		countQuery += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["dosage_form"]; ok {
		query += fmt.Sprintf(` AND dosage_form = $%d`, idx)
		countQuery += fmt.Sprintf(` AND dosage_form = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["active"]; ok {
		query += fmt.Sprintf(` AND active = $%d`, idx)
		countQuery += fmt.Sprintf(` AND active = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if params["low_stock"] == "true" {
		cond := ` AND stock_quantity <= min_quantity`
		query += cond
		countQuery += cond
	}
	if params["expired"] == "true" {
		cond := ` AND expiry_date < NOW()`
		query += cond
		countQuery += cond
	}
	if params["expiring_soon"] == "true" {
		cond := ` AND expiry_date >= NOW() AND expiry_date < NOW() + interval '30 days'`
		query += cond
		countQuery += cond
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Medicine
	for rows.Next() {
		m, err := r.scanMedicine(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

func (r *repoPG) QuickSearch(ctx context.Context, q string, limit int) ([]*Medicine, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+medicineCols+` FROM medicine
		WHERE active = true AND (name ILIKE $1 OR generic_name ILIKE $1)
		ORDER BY name LIMIT $2`, q+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Medicine
	for rows.Next() {
		m, err := r.scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *repoPG) Alerts(ctx context.Context) (*Alerts, error) {
	collect := func(where string) ([]*Medicine, error) {
		rows, err := r.conn(ctx).Query(ctx, `SELECT `+medicineCols+` FROM medicine WHERE active = true AND `+where+` ORDER BY name`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var items []*Medicine
		for rows.Next() {
			m, err := r.scanMedicine(rows)
			if err != nil {
				return nil, err
			}
			items = append(items, m)
		}
		return items, nil
	}

	alerts := &Alerts{}
	var err error
	if alerts.LowStock, err = collect(`stock_quantity <= min_quantity`); err != nil {
		return nil, err
	}
	if alerts.Expired, err = collect(`expiry_date < NOW()`); err != nil {
		return nil, err
	}
	if alerts.ExpiringSoon, err = collect(`expiry_date >= NOW() AND expiry_date < NOW() + interval '30 days'`); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByCategory: map[string]int{}}

	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE stock_quantity <= min_quantity),
			COUNT(*) FILTER (WHERE expiry_date < NOW()),
			COALESCE(SUM(price * stock_quantity), 0),
			COALESCE(SUM(cost_price * stock_quantity), 0)
		FROM medicine WHERE active = true`).Scan(
		&stats.Total, &stats.LowStock, &stats.Expired, &stats.StockValue, &stats.StockCostValue)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT category, COUNT(*) FROM medicine WHERE active = true GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		stats.ByCategory[category] = count
	}
	return stats, nil
}
