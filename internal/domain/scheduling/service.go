package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	minDuration     = 15
	maxDuration     = 180
	defaultDuration = 30
)

var validStatuses = map[string]bool{
	"scheduled": true, "confirmed": true, "in-progress": true,
	"completed": true, "cancelled": true, "no-show": true,
}

var validPriorities = map[string]bool{
	"low": true, "normal": true, "high": true, "urgent": true,
}

var validTypes = map[string]bool{
	"consultation": true, "follow-up": true, "emergency": true, "checkup": true,
}

var validPaymentStatuses = map[string]bool{
	"pending": true, "paid": true, "waived": true,
}

// Sentinel errors the handler maps to HTTP status codes.
var (
	ErrNotFound        = errors.New("appointment not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found or inactive")
	ErrAccessDenied    = errors.New("access denied")
)

// TxRunner executes fn within a database transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	appointments Repository
	patients     PatientDirectory
	doctors      DoctorDirectory
	inTx         TxRunner
	now          func() time.Time
}

func NewService(appointments Repository, patients PatientDirectory, doctors DoctorDirectory, inTx TxRunner) *Service {
	return &Service{
		appointments: appointments,
		patients:     patients,
		doctors:      doctors,
		inTx:         inTx,
		now:          time.Now,
	}
}

func (s *Service) applyDefaults(a *Appointment) {
	if a.DurationMin == 0 {
		a.DurationMin = defaultDuration
	}
	if a.Status == "" {
		a.Status = "scheduled"
	}
	if a.Priority == "" {
		a.Priority = "normal"
	}
	if a.Type == "" {
		a.Type = "consultation"
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = "pending"
	}
	a.EndTime = a.StartTime.Add(time.Duration(a.DurationMin) * time.Minute)
}

func (s *Service) validate(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient id is required")
	}
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor id is required")
	}
	if a.StartTime.IsZero() {
		return fmt.Errorf("start time is required")
	}
	if a.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	if a.DurationMin < minDuration || a.DurationMin > maxDuration {
		return fmt.Errorf("duration must be between %d and %d minutes", minDuration, maxDuration)
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	if !validPriorities[a.Priority] {
		return fmt.Errorf("invalid priority: %s", a.Priority)
	}
	if !validTypes[a.Type] {
		return fmt.Errorf("invalid type: %s", a.Type)
	}
	if !validPaymentStatuses[a.PaymentStatus] {
		return fmt.Errorf("invalid payment status: %s", a.PaymentStatus)
	}
	if a.Fee < 0 {
		return fmt.Errorf("fee cannot be negative")
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, a *Appointment) error {
	ok, err := s.patients.Exists(ctx, a.PatientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	ok, err = s.doctors.IsActiveDoctor(ctx, a.DoctorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDoctorNotFound
	}
	return nil
}

func (s *Service) checkConflicts(ctx context.Context, a *Appointment) error {
	conflicts, err := s.appointments.FindActiveOverlaps(ctx, a.DoctorID, a.StartTime, a.EndTime, a.ID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// Create books an appointment. The read-side overlap check produces the
// friendly conflict payload; the exclusion constraint backs it up under
// concurrent inserts.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	s.applyDefaults(a)
	if err := s.validate(a); err != nil {
		return err
	}
	if a.StartTime.Before(s.now()) {
		return fmt.Errorf("cannot book an appointment in the past")
	}
	if err := s.checkReferences(ctx, a); err != nil {
		return err
	}
	if err := s.checkConflicts(ctx, a); err != nil {
		return err
	}
	// Booking counts as a visit; the insert and the counter move together.
	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.Create(ctx, a); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return &ConflictError{}
			}
			return err
		}
		return s.patients.RecordVisit(ctx, a.PatientID, a.StartTime)
	})
}

// Get returns an appointment. Doctors may only read their own.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if actorRole == "doctor" && a.DoctorID != actorID {
		return nil, ErrAccessDenied
	}
	return a, nil
}

// Update edits a non-terminal appointment, re-running the conflict check with
// the appointment itself excluded.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	existing, err := s.appointments.GetByID(ctx, a.ID)
	if err != nil {
		return ErrNotFound
	}
	if existing.IsTerminal() {
		return fmt.Errorf("cannot edit a %s appointment", existing.Status)
	}

	a.Status = existing.Status
	a.Code = existing.Code
	s.applyDefaults(a)
	if err := s.validate(a); err != nil {
		return err
	}
	if err := s.checkReferences(ctx, a); err != nil {
		return err
	}
	if err := s.checkConflicts(ctx, a); err != nil {
		return err
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return &ConflictError{}
		}
		return err
	}
	return nil
}

// UpdateStatus transitions the appointment status. Cancellation requires a
// reason and records the actor.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status, cancelReason string, actor uuid.UUID) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.IsTerminal() {
		return nil, fmt.Errorf("appointment is already %s", a.Status)
	}
	// All checks precede any mutation: repositories may hand back shared
	// state, so a rejected transition must leave the appointment untouched.
	if status == "cancelled" && cancelReason == "" {
		return nil, fmt.Errorf("cancel reason is required")
	}

	a.Status = status
	a.UpdatedBy = &actor
	if status == "cancelled" {
		now := s.now()
		a.CancelReason = &cancelReason
		a.CancelledAt = &now
		a.CancelledBy = &actor
	}
	if err := s.appointments.UpdateStatus(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Search lists appointments. Doctors are always scoped to their own book.
func (s *Service) Search(ctx context.Context, params map[string]string, actorID uuid.UUID, actorRole string, limit, offset int) ([]*Appointment, int, error) {
	if actorRole == "doctor" {
		params["doctor"] = actorID.String()
	}
	return s.appointments.Search(ctx, params, limit, offset)
}

// CalendarView returns the active appointments for one day.
func (s *Service) CalendarView(ctx context.Context, day time.Time, actorID uuid.UUID, actorRole string, doctorFilter uuid.UUID) ([]*Appointment, error) {
	doctorID := doctorFilter
	if actorRole == "doctor" {
		doctorID = actorID
	}
	return s.appointments.CalendarDay(ctx, day, doctorID)
}

// CheckAvailability reports whether a slot is free and which appointments
// block it.
func (s *Service) CheckAvailability(ctx context.Context, doctorID uuid.UUID, start time.Time, durationMin int, excludeID uuid.UUID) (*Availability, error) {
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor id is required")
	}
	if start.IsZero() {
		return nil, fmt.Errorf("start time is required")
	}
	if durationMin == 0 {
		durationMin = defaultDuration
	}
	if durationMin < minDuration || durationMin > maxDuration {
		return nil, fmt.Errorf("duration must be between %d and %d minutes", minDuration, maxDuration)
	}
	end := start.Add(time.Duration(durationMin) * time.Minute)

	conflicts, err := s.appointments.FindActiveOverlaps(ctx, doctorID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	return &Availability{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

func (s *Service) Stats(ctx context.Context, actorID uuid.UUID, actorRole string) (*Stats, error) {
	doctorID := uuid.Nil
	if actorRole == "doctor" {
		doctorID = actorID
	}
	return s.appointments.Stats(ctx, doctorID)
}
