package staff

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error)
	ListDoctors(ctx context.Context) ([]*User, error)
	Stats(ctx context.Context) (*Stats, error)
}
