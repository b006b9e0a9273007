package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the appointment. It returns ErrSlotTaken when the
	// database exclusion constraint rejects an overlapping active slot.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, a *Appointment) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
	// FindActiveOverlaps returns active-status appointments for the doctor
	// whose interval intersects [start, end), excluding excludeID.
	FindActiveOverlaps(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error)
	CalendarDay(ctx context.Context, day time.Time, doctorID uuid.UUID) ([]*Appointment, error)
	Upcoming(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Appointment, error)
	Stats(ctx context.Context, doctorID uuid.UUID) (*Stats, error)
}

// Cross-domain dependencies, wired in main.

type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	RecordVisit(ctx context.Context, id uuid.UUID, at time.Time) error
}

type DoctorDirectory interface {
	IsActiveDoctor(ctx context.Context, id uuid.UUID) (bool, error)
}
