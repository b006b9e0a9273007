package record

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	Update(ctx context.Context, r *MedicalRecord) error
	UpdateStatus(ctx context.Context, r *MedicalRecord) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	AddInvestigation(ctx context.Context, inv *Investigation) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*MedicalRecord, int, error)
	PatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
	Stats(ctx context.Context, doctorID uuid.UUID) (*Stats, error)
}

// PatientDirectory is the cross-domain lookup wired in main.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
