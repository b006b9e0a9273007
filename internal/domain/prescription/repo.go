package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	UpdateStatus(ctx context.Context, p *Prescription) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// MarkLineDispensed flips a line's dispensed flag. Returns false when the
	// line was already dispensed, so a racing duplicate request loses.
	MarkLineDispensed(ctx context.Context, lineID uuid.UUID, actor uuid.UUID, at time.Time) (bool, error)
	SetPharmacyNotes(ctx context.Context, id uuid.UUID, notes *string) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error)
	PatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	Stats(ctx context.Context, doctorID uuid.UUID) (*Stats, error)
}

// PatientDirectory is the cross-domain lookup wired in main.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// CatalogMedicine is the slice of the inventory record a prescription needs.
type CatalogMedicine struct {
	ID            uuid.UUID
	Name          string
	Price         int64
	StockQuantity int
}

// MedicineCatalog is the inventory gateway wired in main. Dispense atomically
// decrements stock and returns false when stock is insufficient.
type MedicineCatalog interface {
	Lookup(ctx context.Context, id uuid.UUID) (*CatalogMedicine, error)
	Dispense(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
}
