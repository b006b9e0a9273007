package scheduling

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	appointments map[uuid.UUID]*Appointment
	seq          int
}

func newMockRepo() *mockRepo {
	return &mockRepo{appointments: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.seq++
	a.ID = uuid.New()
	a.Code = fmt.Sprintf("AP%06d", m.seq)
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.appointments[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return a, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	existing, ok := m.appointments[a.ID]
	if !ok {
		return fmt.Errorf("not found")
	}
	a.Code = existing.Code
	m.appointments[a.ID] = a
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, a *Appointment) error {
	m.appointments[a.ID] = a
	return nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appointments {
		if d, ok := params["doctor"]; ok && a.DoctorID.String() != d {
			continue
		}
		if s, ok := params["status"]; ok && a.Status != s {
			continue
		}
		result = append(result, a)
	}
	return result, len(result), nil
}

var activeStatuses = map[string]bool{
	"scheduled": true, "confirmed": true, "in-progress": true,
}

func (m *mockRepo) FindActiveOverlaps(_ context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.appointments {
		if a.DoctorID != doctorID || a.ID == excludeID || !activeStatuses[a.Status] {
			continue
		}
		if a.Overlaps(start, end) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockRepo) CalendarDay(_ context.Context, day time.Time, doctorID uuid.UUID) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.appointments {
		if !activeStatuses[a.Status] {
			continue
		}
		if doctorID != uuid.Nil && a.DoctorID != doctorID {
			continue
		}
		y1, m1, d1 := a.StartTime.Date()
		y2, m2, d2 := day.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockRepo) Upcoming(_ context.Context, doctorID uuid.UUID, limit int) ([]*Appointment, error) {
	return nil, nil
}

func (m *mockRepo) Stats(_ context.Context, doctorID uuid.UUID) (*Stats, error) {
	stats := &Stats{ByStatus: map[string]int{}, ByType: map[string]int{}}
	for _, a := range m.appointments {
		if doctorID != uuid.Nil && a.DoctorID != doctorID {
			continue
		}
		stats.ByStatus[a.Status]++
		stats.ByType[a.Type]++
	}
	return stats, nil
}

// -- Mock cross-domain directories --

type mockPatients struct {
	known  map[uuid.UUID]bool
	visits map[uuid.UUID]int
}

func newMockPatients(ids ...uuid.UUID) *mockPatients {
	m := &mockPatients{known: map[uuid.UUID]bool{}, visits: map[uuid.UUID]int{}}
	for _, id := range ids {
		m.known[id] = true
	}
	return m
}

func (m *mockPatients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.known[id], nil
}

func (m *mockPatients) RecordVisit(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.visits[id]++
	return nil
}

type mockDoctors struct {
	active map[uuid.UUID]bool
}

func newMockDoctors(ids ...uuid.UUID) *mockDoctors {
	m := &mockDoctors{active: map[uuid.UUID]bool{}}
	for _, id := range ids {
		m.active[id] = true
	}
	return m
}

func (m *mockDoctors) IsActiveDoctor(_ context.Context, id uuid.UUID) (bool, error) {
	return m.active[id], nil
}

// -- Test fixture --

type fixture struct {
	svc      *Service
	repo     *mockRepo
	patients *mockPatients
	patient  uuid.UUID
	doctor   uuid.UUID
	baseTime time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	patientID := uuid.New()
	doctorID := uuid.New()
	repo := newMockRepo()
	patients := newMockPatients(patientID)

	// Mirrors a rollback: on error the stored appointments revert.
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		saved := make(map[uuid.UUID]*Appointment, len(repo.appointments))
		for id, a := range repo.appointments {
			saved[id] = a
		}
		savedSeq := repo.seq
		if err := fn(ctx); err != nil {
			repo.appointments = saved
			repo.seq = savedSeq
			return err
		}
		return nil
	}

	svc := NewService(repo, patients, newMockDoctors(doctorID), inTx)

	// Fixed clock: bookings start tomorrow at 09:00.
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &fixture{
		svc:      svc,
		repo:     repo,
		patients: patients,
		patient:  patientID,
		doctor:   doctorID,
		baseTime: time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) appointment(start time.Time, duration int) *Appointment {
	return &Appointment{
		PatientID:   f.patient,
		DoctorID:    f.doctor,
		StartTime:   start,
		DurationMin: duration,
		Reason:      "checkup",
	}
}

func (f *fixture) book(t *testing.T, start time.Time, duration int) *Appointment {
	t.Helper()
	a := f.appointment(start, duration)
	if err := f.svc.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

// -- Tests --

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.baseTime, 30)

	if a.Code != "AP000001" {
		t.Errorf("code = %q, want AP000001", a.Code)
	}
	if a.Status != "scheduled" {
		t.Errorf("status = %q, want scheduled", a.Status)
	}
	if !a.EndTime.Equal(f.baseTime.Add(30 * time.Minute)) {
		t.Errorf("end = %v, want start+30m", a.EndTime)
	}
	if f.patients.visits[f.patient] != 1 {
		t.Error("booking should record a patient visit")
	}
}

func TestCreateAppointment_DefaultDuration(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.baseTime, 0)
	if a.DurationMin != 30 {
		t.Errorf("duration = %d, want default 30", a.DurationMin)
	}
}

func TestCreateAppointment_RejectsPast(t *testing.T) {
	f := newFixture(t)
	a := f.appointment(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC), 30)
	if err := f.svc.Create(context.Background(), a); err == nil {
		t.Error("expected past booking to be rejected")
	}
}

func TestCreateAppointment_UnknownReferences(t *testing.T) {
	f := newFixture(t)

	a := f.appointment(f.baseTime, 30)
	a.PatientID = uuid.New()
	if err := f.svc.Create(context.Background(), a); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("unknown patient: got %v, want ErrPatientNotFound", err)
	}

	a = f.appointment(f.baseTime, 30)
	a.DoctorID = uuid.New()
	if err := f.svc.Create(context.Background(), a); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("unknown doctor: got %v, want ErrDoctorNotFound", err)
	}
}

func TestCreateAppointment_DurationBounds(t *testing.T) {
	f := newFixture(t)
	for _, duration := range []int{10, 181} {
		a := f.appointment(f.baseTime, duration)
		if err := f.svc.Create(context.Background(), a); err == nil {
			t.Errorf("duration %d should be rejected", duration)
		}
	}
}

// The 09:00-09:30 / 09:15 / 09:30 scenario: a 09:15 booking overlaps, a 09:30
// booking abuts and is accepted.
func TestConflictDetection(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.baseTime, 30) // 09:00-09:30

	overlap := f.appointment(f.baseTime.Add(15*time.Minute), 30) // 09:15-09:45
	err := f.svc.Create(context.Background(), overlap)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflict.Conflicts) != 1 {
		t.Errorf("conflicts = %d, want 1", len(conflict.Conflicts))
	}

	abut := f.appointment(f.baseTime.Add(30*time.Minute), 30) // 09:30-10:00
	if err := f.svc.Create(context.Background(), abut); err != nil {
		t.Errorf("abutting appointment should be accepted: %v", err)
	}
}

func TestConflictDetection_IgnoresInactiveStatuses(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.baseTime, 30)

	if _, err := f.svc.UpdateStatus(context.Background(), a.ID, "cancelled", "patient request", uuid.New()); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	again := f.appointment(f.baseTime, 30)
	if err := f.svc.Create(context.Background(), again); err != nil {
		t.Errorf("cancelled slot should be reusable: %v", err)
	}
}

func TestConflictDetection_OtherDoctorUnaffected(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.baseTime, 30)

	otherDoctor := uuid.New()
	f.svc.doctors.(*mockDoctors).active[otherDoctor] = true

	a := f.appointment(f.baseTime, 30)
	a.DoctorID = otherDoctor
	if err := f.svc.Create(context.Background(), a); err != nil {
		t.Errorf("same slot with another doctor should be fine: %v", err)
	}
}

func TestUpdate_ExcludesSelfFromConflictCheck(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.baseTime, 30)

	// Stretch the same appointment to 45 minutes in place.
	edited := f.appointment(f.baseTime, 45)
	edited.ID = a.ID
	if err := f.svc.Update(context.Background(), edited); err != nil {
		t.Errorf("edit overlapping only itself should succeed: %v", err)
	}
}

func TestUpdate_TerminalRejected(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.baseTime, 30)
	if _, err := f.svc.UpdateStatus(context.Background(), a.ID, "completed", "", uuid.New()); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	edited := f.appointment(f.baseTime.Add(time.Hour), 30)
	edited.ID = a.ID
	if err := f.svc.Update(context.Background(), edited); err == nil {
		t.Error("expected edit of completed appointment to fail")
	}
}

func TestUpdateStatus_CancelRequiresReason(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.baseTime, 30)

	if _, err := f.svc.UpdateStatus(context.Background(), a.ID, "cancelled", "", uuid.New()); err == nil {
		t.Error("expected cancellation without reason to fail")
	}

	// A rejected cancellation must leave the stored appointment untouched.
	stored, err := f.repo.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != "scheduled" {
		t.Errorf("status after rejected cancellation = %q, want scheduled", stored.Status)
	}
	if stored.CancelReason != nil || stored.CancelledAt != nil || stored.CancelledBy != nil {
		t.Error("rejected cancellation left cancel fields set")
	}

	actor := uuid.New()
	got, err := f.svc.UpdateStatus(context.Background(), a.ID, "cancelled", "patient request", actor)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.CancelReason == nil || *got.CancelReason != "patient request" {
		t.Error("cancel reason not recorded")
	}
	if got.CancelledBy == nil || *got.CancelledBy != actor {
		t.Error("cancelling actor not recorded")
	}
	if got.CancelledAt == nil {
		t.Error("cancellation time not recorded")
	}
}

func TestGet_DoctorOwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.baseTime, 30)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, a.ID, f.doctor, "doctor"); err != nil {
		t.Errorf("owning doctor should read their appointment: %v", err)
	}
	if _, err := f.svc.Get(ctx, a.ID, uuid.New(), "doctor"); err == nil {
		t.Error("another doctor should be denied")
	}
	if _, err := f.svc.Get(ctx, a.ID, uuid.New(), "admin"); err != nil {
		t.Errorf("admin should read any appointment: %v", err)
	}
}

func TestSearch_DoctorScoped(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.baseTime, 30)

	otherDoctor := uuid.New()
	f.svc.doctors.(*mockDoctors).active[otherDoctor] = true
	other := f.appointment(f.baseTime.Add(2*time.Hour), 30)
	other.DoctorID = otherDoctor
	if err := f.svc.Create(context.Background(), other); err != nil {
		t.Fatalf("Create: %v", err)
	}

	items, _, err := f.svc.Search(context.Background(), map[string]string{}, f.doctor, "doctor", 20, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, a := range items {
		if a.DoctorID != f.doctor {
			t.Error("doctor search leaked another doctor's appointment")
		}
	}

	items, _, err = f.svc.Search(context.Background(), map[string]string{}, uuid.New(), "admin", 20, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("admin should see both appointments, got %d", len(items))
	}
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.baseTime, 30)
	ctx := context.Background()

	result, err := f.svc.CheckAvailability(ctx, f.doctor, f.baseTime.Add(15*time.Minute), 30, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if result.Available {
		t.Error("overlapping slot reported as available")
	}
	if len(result.Conflicts) != 1 {
		t.Errorf("conflicts = %d, want 1", len(result.Conflicts))
	}

	result, err = f.svc.CheckAvailability(ctx, f.doctor, f.baseTime.Add(30*time.Minute), 30, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if !result.Available {
		t.Error("abutting slot reported as unavailable")
	}
}

func TestCreate_DatabaseRaceSurfacesAsConflict(t *testing.T) {
	f := newFixture(t)
	f.svc.appointments = &slotTakenRepo{Repository: f.repo}

	a := f.appointment(f.baseTime, 30)
	err := f.svc.Create(context.Background(), a)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Errorf("expected ConflictError from ErrSlotTaken, got %v", err)
	}
}

// slotTakenRepo simulates the exclusion constraint firing on insert.
type slotTakenRepo struct {
	Repository
}

func (r *slotTakenRepo) Create(_ context.Context, _ *Appointment) error {
	return ErrSlotTaken
}

func TestCreate_VisitCounterFailureRollsBackBooking(t *testing.T) {
	f := newFixture(t)
	f.svc.patients = &failingVisits{mockPatients: f.patients}

	a := f.appointment(f.baseTime, 30)
	if err := f.svc.Create(context.Background(), a); err == nil {
		t.Fatal("expected visit counter failure to surface")
	}
	if len(f.repo.appointments) != 0 {
		t.Error("booking should roll back together with the visit counter")
	}
}

// failingVisits accepts the patient lookup but fails the visit increment.
type failingVisits struct {
	*mockPatients
}

func (m *failingVisits) RecordVisit(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return fmt.Errorf("visit counter unavailable")
}
