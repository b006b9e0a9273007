package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Medicine maps to the medicine table. Prices are integers in the base
// currency unit.
type Medicine struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	Name                 string     `db:"name" json:"name"`
	GenericName          *string    `db:"generic_name" json:"genericName,omitempty"`
	Brand                *string    `db:"brand" json:"brand,omitempty"`
	Category             string     `db:"category" json:"category"`
	DosageForm           string     `db:"dosage_form" json:"dosageForm"`
	Strength             *string    `db:"strength" json:"strength,omitempty"`
	Unit                 string     `db:"unit" json:"unit"`
	Manufacturer         *string    `db:"manufacturer" json:"manufacturer,omitempty"`
	BatchNumber          *string    `db:"batch_number" json:"batchNumber,omitempty"`
	ManufacturingDate    *time.Time `db:"manufacturing_date" json:"manufacturingDate,omitempty"`
	ExpiryDate           *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	Price                int64      `db:"price" json:"price"`
	CostPrice            int64      `db:"cost_price" json:"costPrice"`
	StockQuantity        int        `db:"stock_quantity" json:"stockQuantity"`
	MinQuantity          int        `db:"min_quantity" json:"minQuantity"`
	MaxQuantity          *int       `db:"max_quantity" json:"maxQuantity,omitempty"`
	PrescriptionRequired bool       `db:"prescription_required" json:"prescriptionRequired"`
	Controlled           bool       `db:"controlled" json:"controlled"`
	Storage              *string    `db:"storage" json:"storage,omitempty"`
	Active               bool       `db:"active" json:"active"`
	Tags                 []string   `db:"tags" json:"tags,omitempty"`
	CreatedBy            *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy            *uuid.UUID `db:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`

	// Derived, not stored.
	IsLowStock     bool `db:"-" json:"isLowStock"`
	IsExpired      bool `db:"-" json:"isExpired"`
	IsExpiringSoon bool `db:"-" json:"isExpiringSoon"`
}

const expiringSoonWindow = 30 * 24 * time.Hour

// ComputeFlags sets the derived stock and expiry flags.
func (m *Medicine) ComputeFlags(now time.Time) {
	m.IsLowStock = m.StockQuantity <= m.MinQuantity
	m.IsExpired = m.ExpiryDate != nil && m.ExpiryDate.Before(now)
	m.IsExpiringSoon = m.ExpiryDate != nil && !m.IsExpired &&
		m.ExpiryDate.Before(now.Add(expiringSoonWindow))
}

// Alerts groups medicines needing attention.
type Alerts struct {
	LowStock     []*Medicine `json:"lowStock"`
	Expired      []*Medicine `json:"expired"`
	ExpiringSoon []*Medicine `json:"expiringSoon"`
}

// Stats summarizes the medicine catalog.
type Stats struct {
	Total          int            `json:"total"`
	LowStock       int            `json:"lowStock"`
	Expired        int            `json:"expired"`
	ByCategory     map[string]int `json:"byCategory"`
	StockValue     int64          `json:"stockValue"`
	StockCostValue int64          `json:"stockCostValue"`
}
