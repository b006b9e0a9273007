package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockRepo records which doctor scope each aggregation was called with.
type mockRepo struct {
	scopes map[string]uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{scopes: make(map[string]uuid.UUID)}
}

func (m *mockRepo) PatientTotal(context.Context) (int, error)  { return 120, nil }
func (m *mockRepo) ActiveDoctors(context.Context) (int, error) { return 4, nil }

func (m *mockRepo) AppointmentCounts(_ context.Context, doctorID uuid.UUID) (*AppointmentCounts, error) {
	m.scopes["appointments"] = doctorID
	return &AppointmentCounts{Today: 3, ThisMonth: 40, Pending: 7}, nil
}

func (m *mockRepo) RecordCounts(_ context.Context, doctorID uuid.UUID) (*CountPair, error) {
	m.scopes["records"] = doctorID
	return &CountPair{Today: 2, ThisMonth: 30}, nil
}

func (m *mockRepo) PrescriptionCounts(_ context.Context, doctorID uuid.UUID) (*CountPair, error) {
	m.scopes["prescriptions"] = doctorID
	return &CountPair{Today: 2, ThisMonth: 25}, nil
}

func (m *mockRepo) Revenue(_ context.Context, doctorID uuid.UUID) (*RevenueCounts, error) {
	m.scopes["revenue"] = doctorID
	return &RevenueCounts{Today: 150000, ThisMonth: 4200000}, nil
}

func (m *mockRepo) InventoryAlerts(context.Context) (*InventoryAlerts, error) {
	return &InventoryAlerts{LowStock: 5, Expired: 1}, nil
}

func (m *mockRepo) DailyAppointments(_ context.Context, from, to time.Time, doctorID uuid.UUID) ([]DailyCount, error) {
	m.scopes["daily"] = doctorID
	return []DailyCount{{Date: from, Count: 1}}, nil
}

func (m *mockRepo) MonthlyRevenue(_ context.Context, months int, doctorID uuid.UUID) ([]MonthlyRevenue, error) {
	m.scopes["monthly"] = doctorID
	return make([]MonthlyRevenue, months), nil
}

func (m *mockRepo) UpcomingAppointments(_ context.Context, doctorID uuid.UUID, limit int) ([]UpcomingAppointment, error) {
	m.scopes["upcoming"] = doctorID
	return make([]UpcomingAppointment, limit), nil
}

func TestOverview_Admin(t *testing.T) {
	svc := NewService(newMockRepo())
	out, err := svc.Overview(context.Background(), uuid.New(), "admin")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if out.TotalPatients == nil || *out.TotalPatients != 120 {
		t.Error("admin overview missing patient total")
	}
	if out.ActiveDoctors == nil {
		t.Error("admin overview missing doctor count")
	}
	if out.Revenue == nil {
		t.Error("admin overview missing revenue")
	}
	if out.Inventory == nil {
		t.Error("admin overview missing inventory alerts")
	}
}

func TestOverview_DoctorScoped(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	doctorID := uuid.New()

	out, err := svc.Overview(context.Background(), doctorID, "doctor")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if out.TotalPatients != nil || out.ActiveDoctors != nil {
		t.Error("doctor overview leaks clinic-wide totals")
	}
	if out.Inventory != nil {
		t.Error("doctor overview leaks inventory alerts")
	}
	for _, key := range []string{"appointments", "records", "prescriptions", "revenue"} {
		if repo.scopes[key] != doctorID {
			t.Errorf("%s aggregation not scoped to the doctor", key)
		}
	}
}

func TestOverview_ReceptionistNoRevenue(t *testing.T) {
	svc := NewService(newMockRepo())
	out, err := svc.Overview(context.Background(), uuid.New(), "receptionist")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if out.Revenue != nil {
		t.Error("receptionist overview leaks revenue")
	}
	if out.Inventory != nil {
		t.Error("receptionist overview leaks inventory alerts")
	}
	if out.TotalPatients == nil {
		t.Error("receptionist overview missing patient total")
	}
}

func TestMonthlyRevenue_Roles(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	doctorID := uuid.New()

	if _, err := svc.MonthlyRevenue(ctx, uuid.New(), "receptionist"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("receptionist revenue: got %v, want ErrAccessDenied", err)
	}

	months, err := svc.MonthlyRevenue(ctx, doctorID, "doctor")
	if err != nil {
		t.Fatalf("MonthlyRevenue: %v", err)
	}
	if len(months) != 12 {
		t.Errorf("months = %d, want 12", len(months))
	}
	if repo.scopes["monthly"] != doctorID {
		t.Error("doctor revenue not scoped")
	}

	if _, err := svc.MonthlyRevenue(ctx, uuid.New(), "admin"); err != nil {
		t.Fatalf("admin MonthlyRevenue: %v", err)
	}
	if repo.scopes["monthly"] != uuid.Nil {
		t.Error("admin revenue unexpectedly scoped")
	}
}

func TestDailyAppointments_RangeChecks(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	now := time.Now()

	if _, err := svc.DailyAppointments(ctx, now, now.AddDate(0, 0, -1), uuid.New(), "admin"); err == nil {
		t.Error("inverted range accepted")
	}
	if _, err := svc.DailyAppointments(ctx, now, now.AddDate(0, 0, 120), uuid.New(), "admin"); err == nil {
		t.Error("oversized range accepted")
	}
	if _, err := svc.DailyAppointments(ctx, now, now.AddDate(0, 0, 6), uuid.New(), "admin"); err != nil {
		t.Error("valid week range rejected")
	}
}

func TestUpcomingAppointments_LimitClamp(t *testing.T) {
	svc := NewService(newMockRepo())
	items, err := svc.UpcomingAppointments(context.Background(), 500, uuid.New(), "admin")
	if err != nil {
		t.Fatalf("UpcomingAppointments: %v", err)
	}
	if len(items) != 10 {
		t.Errorf("limit = %d, want clamp to 10", len(items))
	}
}
