package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultValidity = 30 * 24 * time.Hour

var validStatuses = map[string]bool{
	"draft": true, "issued": true, "partially-dispensed": true,
	"fully-dispensed": true, "cancelled": true,
}

var validPriorities = map[string]bool{
	"low": true, "normal": true, "high": true, "urgent": true,
}

// errLineRaced aborts a per-line transaction so its stock decrement rolls
// back when another request dispensed the line first.
var errLineRaced = errors.New("line dispensed concurrently")

// Sentinel errors the handler maps to HTTP status codes.
var (
	ErrNotFound         = errors.New("prescription not found")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrMedicineNotFound = errors.New("medicine not found")
	ErrAccessDenied     = errors.New("access denied")
)

// TxRunner executes fn within a database transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	prescriptions Repository
	patients      PatientDirectory
	catalog       MedicineCatalog
	inTx          TxRunner
	now           func() time.Time
}

func NewService(prescriptions Repository, patients PatientDirectory, catalog MedicineCatalog, inTx TxRunner) *Service {
	return &Service{
		prescriptions: prescriptions,
		patients:      patients,
		catalog:       catalog,
		inTx:          inTx,
		now:           time.Now,
	}
}

func (s *Service) validate(p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient id is required")
	}
	if len(p.Medications) == 0 {
		return fmt.Errorf("at least one medication is required")
	}
	if !validPriorities[p.Priority] {
		return fmt.Errorf("invalid priority: %s", p.Priority)
	}
	for _, m := range p.Medications {
		if m.MedicineID == uuid.Nil {
			return fmt.Errorf("medicine id is required on every line")
		}
		if m.Quantity < 1 {
			return fmt.Errorf("medication quantity must be at least 1")
		}
		if m.UnitPrice < 0 {
			return fmt.Errorf("medication unit price cannot be negative")
		}
	}
	return nil
}

// priceLines resolves each line against the catalog: the medicine must exist
// and cover the requested quantity, the name is snapshotted, and the unit
// price falls back to the catalog price unless explicitly overridden. No
// stock is decremented here; that happens at dispense time.
func (s *Service) priceLines(ctx context.Context, p *Prescription) error {
	var shortages []StockShortage
	for i := range p.Medications {
		m := &p.Medications[i]
		med, err := s.catalog.Lookup(ctx, m.MedicineID)
		if err != nil {
			return ErrMedicineNotFound
		}
		if med.StockQuantity < m.Quantity {
			shortages = append(shortages, StockShortage{
				MedicineName: med.Name,
				Requested:    m.Quantity,
				Available:    med.StockQuantity,
			})
			continue
		}
		m.MedicineName = med.Name
		if m.UnitPrice == 0 {
			m.UnitPrice = med.Price
		}
	}
	if len(shortages) > 0 {
		return &StockError{Shortages: shortages}
	}
	return nil
}

// Create writes a prescription for the authenticated doctor. Every line must
// be covered by current stock or the whole creation is rejected.
func (s *Service) Create(ctx context.Context, p *Prescription, doctorID uuid.UUID) error {
	p.DoctorID = doctorID
	if p.PrescriptionDate.IsZero() {
		p.PrescriptionDate = s.now()
	}
	if p.ValidUntil.IsZero() {
		p.ValidUntil = p.PrescriptionDate.Add(defaultValidity)
	}
	if p.Priority == "" {
		p.Priority = "normal"
	}
	if p.Status == "" {
		p.Status = "draft"
	}
	if p.Status != "draft" && p.Status != "issued" {
		return fmt.Errorf("new prescriptions start as draft or issued, not %s", p.Status)
	}
	if err := s.validate(p); err != nil {
		return err
	}

	ok, err := s.patients.Exists(ctx, p.PatientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	if err := s.priceLines(ctx, p); err != nil {
		return err
	}
	if p.Status == "issued" {
		now := s.now()
		p.IssuedBy = &doctorID
		p.IssuedAt = &now
	}

	p.ComputeTotals()
	return s.inTx(ctx, func(ctx context.Context) error {
		return s.prescriptions.Create(ctx, p)
	})
}

// Get returns a prescription, enforcing doctor ownership.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole string) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if actorRole == "doctor" && p.DoctorID != actorID {
		return nil, ErrAccessDenied
	}
	return p, nil
}

// Update edits a prescription that no one has started dispensing. The owning
// doctor may rewrite the lines; totals are recomputed against the catalog.
func (s *Service) Update(ctx context.Context, p *Prescription, actorID uuid.UUID, actorRole string) error {
	existing, err := s.prescriptions.GetByID(ctx, p.ID)
	if err != nil {
		return ErrNotFound
	}
	if actorRole == "doctor" && existing.DoctorID != actorID {
		return ErrAccessDenied
	}
	if existing.IsTerminal() {
		return fmt.Errorf("a %s prescription cannot be edited", existing.Status)
	}
	if done, _ := existing.DispenseProgress(); done > 0 {
		return fmt.Errorf("prescription cannot be edited once dispensing has begun")
	}
	if !existing.Active {
		return fmt.Errorf("prescription is deleted")
	}

	p.PatientID = existing.PatientID
	p.DoctorID = existing.DoctorID
	p.Code = existing.Code
	p.Status = existing.Status
	if p.Priority == "" {
		p.Priority = existing.Priority
	}
	if p.PrescriptionDate.IsZero() {
		p.PrescriptionDate = existing.PrescriptionDate
	}
	if p.ValidUntil.IsZero() {
		p.ValidUntil = existing.ValidUntil
	}
	if err := s.validate(p); err != nil {
		return err
	}
	if err := s.priceLines(ctx, p); err != nil {
		return err
	}

	p.ComputeTotals()
	return s.inTx(ctx, func(ctx context.Context) error {
		return s.prescriptions.Update(ctx, p)
	})
}

// UpdateStatus handles the manual transitions: issuing and cancelling. The
// dispense statuses are derived from line flags and cannot be set by hand.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status, reason string, actorID uuid.UUID, actorRole string) (*Prescription, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	if status == "partially-dispensed" || status == "fully-dispensed" {
		return nil, fmt.Errorf("dispense statuses are set by dispensing, not directly")
	}
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if actorRole == "doctor" && p.DoctorID != actorID {
		return nil, ErrAccessDenied
	}
	if p.IsTerminal() {
		return nil, fmt.Errorf("prescription is already %s", p.Status)
	}

	switch status {
	case "issued":
		if p.Status != "draft" {
			return nil, fmt.Errorf("only a draft prescription can be issued")
		}
		now := s.now()
		p.IssuedBy = &actorID
		p.IssuedAt = &now
	case "cancelled":
		if reason == "" {
			return nil, fmt.Errorf("cancellation requires a reason")
		}
		now := s.now()
		p.CancelReason = &reason
		p.CancelledBy = &actorID
		p.CancelledAt = &now
	case "draft":
		return nil, fmt.Errorf("prescription cannot return to draft")
	}
	p.Status = status
	if err := s.prescriptions.UpdateStatus(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Dispense hands out the requested lines. Each line runs in its own
// transaction: the stock decrement and the dispensed flag commit together or
// not at all, so a line that loses a race or lacks stock is skipped and
// reported while the rest of the batch proceeds.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, lineIDs []uuid.UUID, pharmacyNotes *string, actorID uuid.UUID) (*DispenseResult, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if p.Status == "cancelled" {
		return nil, fmt.Errorf("a cancelled prescription cannot be dispensed")
	}
	if !p.Active {
		return nil, fmt.Errorf("prescription is deleted")
	}
	if s.now().After(p.ValidUntil) {
		return nil, fmt.Errorf("prescription expired on %s", p.ValidUntil.Format("2006-01-02"))
	}

	lines := make(map[uuid.UUID]*MedicationItem, len(p.Medications))
	for i := range p.Medications {
		lines[p.Medications[i].ID] = &p.Medications[i]
	}
	if len(lineIDs) == 0 {
		for i := range p.Medications {
			lineIDs = append(lineIDs, p.Medications[i].ID)
		}
	}

	result := &DispenseResult{}
	for _, lineID := range lineIDs {
		m, ok := lines[lineID]
		if !ok {
			result.Skipped = append(result.Skipped, SkippedLine{LineID: lineID, Reason: "line not found"})
			continue
		}
		if m.Dispensed {
			result.Skipped = append(result.Skipped, SkippedLine{
				LineID: lineID, MedicineName: m.MedicineName, Reason: "already dispensed",
			})
			continue
		}

		err := s.inTx(ctx, func(ctx context.Context) error {
			ok, err := s.catalog.Dispense(ctx, m.MedicineID, m.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				result.Skipped = append(result.Skipped, SkippedLine{
					LineID: lineID, MedicineName: m.MedicineName, Reason: "insufficient stock",
				})
				return nil
			}
			marked, err := s.prescriptions.MarkLineDispensed(ctx, lineID, actorID, s.now())
			if err != nil {
				return err
			}
			if !marked {
				// Another request got here first. Abort so the stock
				// decrement rolls back.
				return errLineRaced
			}
			now := s.now()
			m.Dispensed = true
			m.DispensedAt = &now
			m.DispensedBy = &actorID
			result.Dispensed = append(result.Dispensed, lineID)
			return nil
		})
		if errors.Is(err, errLineRaced) {
			result.Skipped = append(result.Skipped, SkippedLine{
				LineID: lineID, MedicineName: m.MedicineName, Reason: "already dispensed",
			})
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	if derived := p.DispenseStatus(); derived != "" && derived != p.Status {
		p.Status = derived
		if err := s.prescriptions.UpdateStatus(ctx, p); err != nil {
			return nil, err
		}
	}
	if pharmacyNotes != nil {
		p.PharmacyNotes = pharmacyNotes
		if err := s.prescriptions.SetPharmacyNotes(ctx, p.ID, pharmacyNotes); err != nil {
			return nil, err
		}
	}
	result.Prescription = p
	return result, nil
}

// Search lists prescriptions. Doctors only see their own.
func (s *Service) Search(ctx context.Context, params map[string]string, actorID uuid.UUID, actorRole string, limit, offset int) ([]*Prescription, int, error) {
	if actorRole == "doctor" {
		params["doctor"] = actorID.String()
	}
	return s.prescriptions.Search(ctx, params, limit, offset)
}

func (s *Service) PatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.PatientHistory(ctx, patientID, limit, offset)
}

// SoftDelete removes a prescription no one has started dispensing.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole string) error {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if actorRole == "doctor" && p.DoctorID != actorID {
		return ErrAccessDenied
	}
	if done, _ := p.DispenseProgress(); done > 0 {
		return fmt.Errorf("prescription cannot be deleted once dispensing has begun")
	}
	return s.prescriptions.SetActive(ctx, id, false)
}

func (s *Service) Stats(ctx context.Context, actorID uuid.UUID, actorRole string) (*Stats, error) {
	doctorID := uuid.Nil
	if actorRole == "doctor" {
		doctorID = actorID
	}
	return s.prescriptions.Stats(ctx, doctorID)
}
