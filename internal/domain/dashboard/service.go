package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const revenueMonths = 12

// ErrAccessDenied marks a role that has no visibility into the requested
// section; the handler maps it to 403.
var ErrAccessDenied = errors.New("access denied")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// doctorScope returns the doctor filter for aggregation queries: doctors only
// see their own numbers.
func doctorScope(actorID uuid.UUID, actorRole string) uuid.UUID {
	if actorRole == "doctor" {
		return actorID
	}
	return uuid.Nil
}

// Overview assembles the landing payload. Sections are dropped per role:
// doctors get no clinic-wide patient or staffing totals, receptionists get no
// revenue or inventory alerts.
func (s *Service) Overview(ctx context.Context, actorID uuid.UUID, actorRole string) (*Overview, error) {
	scoped := doctorScope(actorID, actorRole)
	out := &Overview{}

	appts, err := s.repo.AppointmentCounts(ctx, scoped)
	if err != nil {
		return nil, err
	}
	out.Appointments = *appts

	records, err := s.repo.RecordCounts(ctx, scoped)
	if err != nil {
		return nil, err
	}
	out.Records = *records

	prescriptions, err := s.repo.PrescriptionCounts(ctx, scoped)
	if err != nil {
		return nil, err
	}
	out.Prescriptions = *prescriptions

	if actorRole != "doctor" {
		patients, err := s.repo.PatientTotal(ctx)
		if err != nil {
			return nil, err
		}
		out.TotalPatients = &patients

		doctors, err := s.repo.ActiveDoctors(ctx)
		if err != nil {
			return nil, err
		}
		out.ActiveDoctors = &doctors
	}

	if actorRole != "receptionist" {
		revenue, err := s.repo.Revenue(ctx, scoped)
		if err != nil {
			return nil, err
		}
		out.Revenue = revenue
	}

	if actorRole == "admin" {
		alerts, err := s.repo.InventoryAlerts(ctx)
		if err != nil {
			return nil, err
		}
		out.Inventory = alerts
	}
	return out, nil
}

// DailyAppointments charts per-day counts over a range, capped at 90 days.
func (s *Service) DailyAppointments(ctx context.Context, from, to time.Time, actorID uuid.UUID, actorRole string) ([]DailyCount, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end is before its start")
	}
	if to.Sub(from) > 90*24*time.Hour {
		return nil, fmt.Errorf("range cannot exceed 90 days")
	}
	return s.repo.DailyAppointments(ctx, from, to, doctorScope(actorID, actorRole))
}

// MonthlyRevenue returns the trailing twelve months. Receptionists have no
// revenue visibility.
func (s *Service) MonthlyRevenue(ctx context.Context, actorID uuid.UUID, actorRole string) ([]MonthlyRevenue, error) {
	if actorRole == "receptionist" {
		return nil, ErrAccessDenied
	}
	return s.repo.MonthlyRevenue(ctx, revenueMonths, doctorScope(actorID, actorRole))
}

func (s *Service) UpcomingAppointments(ctx context.Context, limit int, actorID uuid.UUID, actorRole string) ([]UpcomingAppointment, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return s.repo.UpcomingAppointments(ctx, doctorScope(actorID, actorRole), limit)
}
