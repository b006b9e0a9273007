package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
	QuickSearch(ctx context.Context, q string, limit int) ([]*Patient, error)
	RecordVisit(ctx context.Context, id uuid.UUID, at time.Time) error
	Stats(ctx context.Context) (*Stats, error)
}
