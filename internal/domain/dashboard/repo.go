package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is read-only aggregation over the domain tables. A nil doctorID
// means unscoped.
type Repository interface {
	PatientTotal(ctx context.Context) (int, error)
	ActiveDoctors(ctx context.Context) (int, error)
	AppointmentCounts(ctx context.Context, doctorID uuid.UUID) (*AppointmentCounts, error)
	RecordCounts(ctx context.Context, doctorID uuid.UUID) (*CountPair, error)
	PrescriptionCounts(ctx context.Context, doctorID uuid.UUID) (*CountPair, error)
	Revenue(ctx context.Context, doctorID uuid.UUID) (*RevenueCounts, error)
	InventoryAlerts(ctx context.Context) (*InventoryAlerts, error)
	DailyAppointments(ctx context.Context, from, to time.Time, doctorID uuid.UUID) ([]DailyCount, error)
	MonthlyRevenue(ctx context.Context, months int, doctorID uuid.UUID) ([]MonthlyRevenue, error)
	UpcomingAppointments(ctx context.Context, doctorID uuid.UUID, limit int) ([]UpcomingAppointment, error)
}
