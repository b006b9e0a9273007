package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	SetStock(ctx context.Context, id uuid.UUID, quantity int, updatedBy uuid.UUID) error
	// DecrementStock subtracts quantity only when enough stock remains.
	// Returns false without error when stock is insufficient.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Medicine, int, error)
	QuickSearch(ctx context.Context, q string, limit int) ([]*Medicine, error)
	Alerts(ctx context.Context) (*Alerts, error)
	Stats(ctx context.Context) (*Stats, error)
}
