package prescription

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mocks --

type mockRepo struct {
	prescriptions map[uuid.UUID]*Prescription
	seq           int
}

func newMockRepo() *mockRepo {
	return &mockRepo{prescriptions: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	m.seq++
	p.ID = uuid.New()
	p.Code = fmt.Sprintf("RX%06d", m.seq)
	p.Active = true
	for i := range p.Medications {
		p.Medications[i].ID = uuid.New()
		p.Medications[i].PrescriptionID = p.ID
	}
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *Prescription) error {
	existing, ok := m.prescriptions[p.ID]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.Code = existing.Code
	p.Active = existing.Active
	for i := range p.Medications {
		if p.Medications[i].ID == uuid.Nil {
			p.Medications[i].ID = uuid.New()
		}
		p.Medications[i].PrescriptionID = p.ID
	}
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, p *Prescription) error {
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	p, ok := m.prescriptions[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.Active = active
	return nil
}

func (m *mockRepo) MarkLineDispensed(_ context.Context, lineID uuid.UUID, actor uuid.UUID, at time.Time) (bool, error) {
	for _, p := range m.prescriptions {
		for i := range p.Medications {
			if p.Medications[i].ID != lineID {
				continue
			}
			if p.Medications[i].Dispensed {
				return false, nil
			}
			return true, nil
		}
	}
	return false, fmt.Errorf("line not found")
}

func (m *mockRepo) SetPharmacyNotes(_ context.Context, id uuid.UUID, notes *string) error {
	p, ok := m.prescriptions[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.PharmacyNotes = notes
	return nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Prescription, int, error) {
	var result []*Prescription
	for _, p := range m.prescriptions {
		if !p.Active {
			continue
		}
		if d, ok := params["doctor"]; ok && p.DoctorID.String() != d {
			continue
		}
		if pt, ok := params["patient"]; ok && p.PatientID.String() != pt {
			continue
		}
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockRepo) PatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return m.Search(ctx, map[string]string{"patient": patientID.String()}, limit, offset)
}

func (m *mockRepo) Stats(_ context.Context, doctorID uuid.UUID) (*Stats, error) {
	stats := &Stats{ByStatus: map[string]int{}}
	for _, p := range m.prescriptions {
		if !p.Active {
			continue
		}
		if doctorID != uuid.Nil && p.DoctorID != doctorID {
			continue
		}
		stats.Total++
		stats.ByStatus[p.Status]++
		if p.Status != "cancelled" {
			stats.Revenue += p.TotalAmount
		}
	}
	return stats, nil
}

type mockPatients struct {
	known map[uuid.UUID]bool
}

func (m *mockPatients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.known[id], nil
}

type mockCatalog struct {
	medicines map[uuid.UUID]*CatalogMedicine
}

func (m *mockCatalog) Lookup(_ context.Context, id uuid.UUID) (*CatalogMedicine, error) {
	med, ok := m.medicines[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return med, nil
}

func (m *mockCatalog) Dispense(_ context.Context, id uuid.UUID, quantity int) (bool, error) {
	med, ok := m.medicines[id]
	if !ok {
		return false, fmt.Errorf("not found")
	}
	if med.StockQuantity < quantity {
		return false, nil
	}
	med.StockQuantity -= quantity
	return true, nil
}

func (m *mockCatalog) snapshot() map[uuid.UUID]int {
	s := make(map[uuid.UUID]int, len(m.medicines))
	for id, med := range m.medicines {
		s[id] = med.StockQuantity
	}
	return s
}

func (m *mockCatalog) restore(s map[uuid.UUID]int) {
	for id, qty := range s {
		m.medicines[id].StockQuantity = qty
	}
}

type fixture struct {
	svc     *Service
	repo    *mockRepo
	catalog *mockCatalog
	patient uuid.UUID
	doctor  uuid.UUID
	amoxID  uuid.UUID
	paraID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newMockRepo(),
		patient: uuid.New(),
		doctor:  uuid.New(),
		amoxID:  uuid.New(),
		paraID:  uuid.New(),
	}
	f.catalog = &mockCatalog{medicines: map[uuid.UUID]*CatalogMedicine{
		f.amoxID: {ID: f.amoxID, Name: "Amoxicillin 500mg", Price: 500, StockQuantity: 50},
		f.paraID: {ID: f.paraID, Name: "Paracetamol 500mg", Price: 100, StockQuantity: 10},
	}}
	patients := &mockPatients{known: map[uuid.UUID]bool{f.patient: true}}

	// The runner mirrors transaction rollback: on error the catalog is
	// restored to its pre-call state.
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		snap := f.catalog.snapshot()
		if err := fn(ctx); err != nil {
			f.catalog.restore(snap)
			return err
		}
		return nil
	}
	f.svc = NewService(f.repo, patients, f.catalog, inTx)
	f.svc.now = func() time.Time {
		return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *fixture) prescription(lines ...MedicationItem) *Prescription {
	if len(lines) == 0 {
		lines = []MedicationItem{{MedicineID: f.amoxID, Quantity: 21}}
	}
	return &Prescription{
		PatientID:   f.patient,
		Medications: lines,
	}
}

func (f *fixture) create(t *testing.T, p *Prescription) *Prescription {
	t.Helper()
	if err := f.svc.Create(context.Background(), p, f.doctor); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func (f *fixture) stock(id uuid.UUID) int {
	return f.catalog.medicines[id].StockQuantity
}

// -- Tests --

func TestCreatePrescription(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription())

	if p.Code != "RX000001" {
		t.Errorf("code = %q, want RX000001", p.Code)
	}
	if p.Status != "draft" {
		t.Errorf("status = %q, want draft", p.Status)
	}
	if p.Medications[0].UnitPrice != 500 {
		t.Errorf("unit price = %d, want catalog price 500", p.Medications[0].UnitPrice)
	}
	if p.Medications[0].MedicineName != "Amoxicillin 500mg" {
		t.Errorf("medicine name not snapshotted: %q", p.Medications[0].MedicineName)
	}
	if p.TotalAmount != 21*500 {
		t.Errorf("total = %d, want %d", p.TotalAmount, 21*500)
	}
	wantValid := p.PrescriptionDate.Add(30 * 24 * time.Hour)
	if !p.ValidUntil.Equal(wantValid) {
		t.Errorf("valid until = %v, want %v", p.ValidUntil, wantValid)
	}
	if f.stock(f.amoxID) != 50 {
		t.Errorf("stock = %d, creation must not decrement", f.stock(f.amoxID))
	}
}

func TestCreatePrescription_UnitPriceOverride(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription(MedicationItem{MedicineID: f.amoxID, Quantity: 10, UnitPrice: 450}))

	if p.Medications[0].UnitPrice != 450 {
		t.Errorf("unit price = %d, override ignored", p.Medications[0].UnitPrice)
	}
	if p.TotalAmount != 4500 {
		t.Errorf("total = %d, want 4500", p.TotalAmount)
	}
}

func TestCreatePrescription_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	p := f.prescription(
		MedicationItem{MedicineID: f.paraID, Quantity: 11},
		MedicationItem{MedicineID: f.amoxID, Quantity: 5},
	)
	err := f.svc.Create(context.Background(), p, f.doctor)
	if err == nil {
		t.Fatal("expected creation to be rejected")
	}
	stockErr, ok := err.(*StockError)
	if !ok {
		t.Fatalf("error = %T, want *StockError", err)
	}
	if len(stockErr.Shortages) != 1 || stockErr.Shortages[0].Available != 10 {
		t.Errorf("shortages = %+v", stockErr.Shortages)
	}
	if len(f.repo.prescriptions) != 0 {
		t.Error("rejected prescription was stored")
	}
	if f.stock(f.paraID) != 10 || f.stock(f.amoxID) != 50 {
		t.Error("stock changed on rejected creation")
	}
}

func TestCreatePrescription_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	p := f.prescription()
	p.PatientID = uuid.New()
	if err := f.svc.Create(context.Background(), p, f.doctor); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("unknown patient: got %v, want ErrPatientNotFound", err)
	}
}

func TestDispense_SingleLine(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription(MedicationItem{MedicineID: f.paraID, Quantity: 3}))
	actor := uuid.New()

	result, err := f.svc.Dispense(context.Background(), p.ID, nil, nil, actor)
	if err != nil {
		t.Fatalf("Dispense: %v", err)
	}
	if len(result.Dispensed) != 1 || len(result.Skipped) != 0 {
		t.Fatalf("dispensed %d, skipped %d", len(result.Dispensed), len(result.Skipped))
	}
	if f.stock(f.paraID) != 7 {
		t.Errorf("stock = %d, want 7", f.stock(f.paraID))
	}
	line := result.Prescription.Medications[0]
	if !line.Dispensed || line.DispensedBy == nil || *line.DispensedBy != actor {
		t.Error("line not marked with actor")
	}
	if result.Prescription.Status != "fully-dispensed" {
		t.Errorf("status = %q, want fully-dispensed", result.Prescription.Status)
	}
}

func TestDispense_PartialBatch(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription(
		MedicationItem{MedicineID: f.amoxID, Quantity: 5},
		MedicationItem{MedicineID: f.paraID, Quantity: 4},
	))

	// Stock for the first medicine runs out before the pharmacy desk gets
	// to this prescription.
	f.catalog.medicines[f.amoxID].StockQuantity = 0

	result, err := f.svc.Dispense(context.Background(), p.ID, nil, nil, uuid.New())
	if err != nil {
		t.Fatalf("Dispense: %v", err)
	}
	if len(result.Dispensed) != 1 {
		t.Fatalf("dispensed = %d, want 1", len(result.Dispensed))
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != "insufficient stock" {
		t.Fatalf("skipped = %+v", result.Skipped)
	}
	if f.stock(f.paraID) != 6 {
		t.Errorf("paracetamol stock = %d, want 6", f.stock(f.paraID))
	}
	if f.stock(f.amoxID) != 0 {
		t.Errorf("amoxicillin stock = %d, want 0", f.stock(f.amoxID))
	}
	if result.Prescription.Status != "partially-dispensed" {
		t.Errorf("status = %q, want partially-dispensed", result.Prescription.Status)
	}
}

func TestDispense_AlreadyDispensedLineSkipped(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription(MedicationItem{MedicineID: f.paraID, Quantity: 2}))
	ctx := context.Background()
	actor := uuid.New()

	if _, err := f.svc.Dispense(ctx, p.ID, nil, nil, actor); err != nil {
		t.Fatalf("Dispense: %v", err)
	}
	result, err := f.svc.Dispense(ctx, p.ID, nil, nil, actor)
	if err != nil {
		t.Fatalf("second Dispense: %v", err)
	}
	if len(result.Dispensed) != 0 {
		t.Error("line dispensed twice")
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != "already dispensed" {
		t.Fatalf("skipped = %+v", result.Skipped)
	}
	if f.stock(f.paraID) != 8 {
		t.Errorf("stock = %d, want single decrement to 8", f.stock(f.paraID))
	}
}

// markLosesRepo simulates a concurrent request winning the dispensed-flag
// update after this request already decremented stock.
type markLosesRepo struct {
	*mockRepo
}

func (m *markLosesRepo) MarkLineDispensed(context.Context, uuid.UUID, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

func TestDispense_RaceRollsBackStock(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription(MedicationItem{MedicineID: f.paraID, Quantity: 3}))
	f.svc.prescriptions = &markLosesRepo{mockRepo: f.repo}

	result, err := f.svc.Dispense(context.Background(), p.ID, nil, nil, uuid.New())
	if err != nil {
		t.Fatalf("Dispense: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != "already dispensed" {
		t.Fatalf("skipped = %+v", result.Skipped)
	}
	if f.stock(f.paraID) != 10 {
		t.Errorf("stock = %d, decrement was not rolled back", f.stock(f.paraID))
	}
}

func TestDispense_CancelledRejected(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription())
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, p.ID, "cancelled", "duplicate entry", f.doctor, "doctor"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := f.svc.Dispense(ctx, p.ID, nil, nil, uuid.New()); err == nil {
		t.Error("cancelled prescription was dispensed")
	}
}

func TestDispense_ExpiredRejected(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription())

	f.svc.now = func() time.Time {
		return p.ValidUntil.Add(24 * time.Hour)
	}
	if _, err := f.svc.Dispense(context.Background(), p.ID, nil, nil, uuid.New()); err == nil {
		t.Error("expired prescription was dispensed")
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription())
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, p.ID, "cancelled", "", f.doctor, "doctor"); err == nil {
		t.Error("cancellation without reason accepted")
	}
	if _, err := f.svc.UpdateStatus(ctx, p.ID, "fully-dispensed", "", f.doctor, "doctor"); err == nil {
		t.Error("dispense status set by hand")
	}

	got, err := f.svc.UpdateStatus(ctx, p.ID, "issued", "", f.doctor, "doctor")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.IssuedBy == nil || *got.IssuedBy != f.doctor {
		t.Error("issuer not recorded")
	}
	if _, err := f.svc.UpdateStatus(ctx, p.ID, "issued", "", f.doctor, "doctor"); err == nil {
		t.Error("re-issuing accepted")
	}
}

func TestUpdate_BlockedOnceDispensingBegan(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription(
		MedicationItem{MedicineID: f.amoxID, Quantity: 5},
		MedicationItem{MedicineID: f.paraID, Quantity: 2},
	))
	ctx := context.Background()

	if _, err := f.svc.Dispense(ctx, p.ID, []uuid.UUID{p.Medications[0].ID}, nil, uuid.New()); err != nil {
		t.Fatalf("Dispense: %v", err)
	}

	edited := f.prescription()
	edited.ID = p.ID
	if err := f.svc.Update(ctx, edited, f.doctor, "doctor"); err == nil {
		t.Error("edit accepted after dispensing began")
	}
	if err := f.svc.SoftDelete(ctx, p.ID, f.doctor, "doctor"); err == nil {
		t.Error("delete accepted after dispensing began")
	}
}

func TestDoctorOwnership(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, f.prescription())
	ctx := context.Background()
	stranger := uuid.New()

	if _, err := f.svc.Get(ctx, p.ID, stranger, "doctor"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("stranger read: got %v, want ErrAccessDenied", err)
	}
	if _, err := f.svc.Get(ctx, p.ID, stranger, "admin"); err != nil {
		t.Errorf("admin should read any prescription: %v", err)
	}
	if err := f.svc.SoftDelete(ctx, p.ID, stranger, "doctor"); err == nil {
		t.Error("another doctor should not delete the prescription")
	}
}
