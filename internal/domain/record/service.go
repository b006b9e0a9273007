package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors the handler maps to HTTP status codes.
var (
	ErrNotFound        = errors.New("record not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrAccessDenied    = errors.New("access denied")
)

var validStatuses = map[string]bool{
	"draft": true, "completed": true, "reviewed": true,
}

var validVisitTypes = map[string]bool{
	"consultation": true, "follow-up": true, "emergency": true, "checkup": true,
}

var validSeverities = map[string]bool{
	"mild": true, "moderate": true, "severe": true, "critical": true,
}

// TxRunner executes fn within a database transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	records  Repository
	patients PatientDirectory
	inTx     TxRunner
}

func NewService(records Repository, patients PatientDirectory, inTx TxRunner) *Service {
	return &Service{records: records, patients: patients, inTx: inTx}
}

func (s *Service) validate(r *MedicalRecord) error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient id is required")
	}
	if r.VisitDate.IsZero() {
		return fmt.Errorf("visit date is required")
	}
	if !validVisitTypes[r.VisitType] {
		return fmt.Errorf("invalid visit type: %s", r.VisitType)
	}
	if r.ChiefComplaint == "" {
		return fmt.Errorf("chief complaint is required")
	}
	if r.DiagnosisPrimary == "" {
		return fmt.Errorf("primary diagnosis is required")
	}
	if r.Severity != nil && !validSeverities[*r.Severity] {
		return fmt.Errorf("invalid severity: %s", *r.Severity)
	}
	if r.ConsultationFee < 0 {
		return fmt.Errorf("consultation fee cannot be negative")
	}
	for _, m := range r.Medications {
		if m.Quantity < 1 {
			return fmt.Errorf("medication quantity must be at least 1")
		}
		if m.UnitPrice < 0 {
			return fmt.Errorf("medication unit price cannot be negative")
		}
	}
	for _, p := range r.Procedures {
		if p.Fee < 0 {
			return fmt.Errorf("procedure fee cannot be negative")
		}
	}
	return nil
}

// Create opens a medical record for the authenticated doctor.
func (s *Service) Create(ctx context.Context, r *MedicalRecord, doctorID uuid.UUID) error {
	r.DoctorID = doctorID
	if r.VisitType == "" {
		r.VisitType = "consultation"
	}
	if r.Status == "" {
		r.Status = "draft"
	}
	if r.Status != "draft" && r.Status != "completed" {
		return fmt.Errorf("new records start as draft or completed, not %s", r.Status)
	}
	if err := s.validate(r); err != nil {
		return err
	}
	ok, err := s.patients.Exists(ctx, r.PatientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}

	r.ComputeDerived()
	return s.inTx(ctx, func(ctx context.Context) error {
		return s.records.Create(ctx, r)
	})
}

// Get returns a record, enforcing doctor ownership.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole string) (*MedicalRecord, error) {
	r, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if actorRole == "doctor" && r.DoctorID != actorID {
		return nil, ErrAccessDenied
	}
	return r, nil
}

// Update edits a draft or completed record. Reviewed records are immutable.
func (s *Service) Update(ctx context.Context, r *MedicalRecord, actorID uuid.UUID, actorRole string) error {
	existing, err := s.records.GetByID(ctx, r.ID)
	if err != nil {
		return ErrNotFound
	}
	if actorRole == "doctor" && existing.DoctorID != actorID {
		return ErrAccessDenied
	}
	if existing.Status == "reviewed" {
		return fmt.Errorf("a reviewed record cannot be edited")
	}
	if !existing.Active {
		return fmt.Errorf("record is deleted")
	}

	r.PatientID = existing.PatientID
	r.DoctorID = existing.DoctorID
	r.Code = existing.Code
	r.Status = existing.Status
	if err := s.validate(r); err != nil {
		return err
	}

	r.ComputeDerived()
	return s.inTx(ctx, func(ctx context.Context) error {
		return s.records.Update(ctx, r)
	})
}

// UpdateStatus moves a record along draft -> completed -> reviewed. Only
// admins may mark a record reviewed; reviewed is terminal.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, actorID uuid.UUID, actorRole string) (*MedicalRecord, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	r, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if r.Status == "reviewed" {
		return nil, fmt.Errorf("record is already reviewed")
	}
	if actorRole == "doctor" && r.DoctorID != actorID {
		return nil, ErrAccessDenied
	}

	if status == "reviewed" {
		if actorRole != "admin" {
			return nil, fmt.Errorf("only an admin can mark a record reviewed")
		}
		now := time.Now()
		r.ReviewedBy = &actorID
		r.ReviewedAt = &now
	}
	r.Status = status
	if err := s.records.UpdateStatus(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// AddInvestigation appends an investigation line to an editable record.
func (s *Service) AddInvestigation(ctx context.Context, recordID uuid.UUID, inv *Investigation, actorID uuid.UUID, actorRole string) error {
	r, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return ErrNotFound
	}
	if actorRole == "doctor" && r.DoctorID != actorID {
		return ErrAccessDenied
	}
	if r.Status == "reviewed" {
		return fmt.Errorf("a reviewed record cannot be edited")
	}
	if inv.Type == "" || inv.Name == "" {
		return fmt.Errorf("investigation type and name are required")
	}
	inv.RecordID = recordID
	return s.records.AddInvestigation(ctx, inv)
}

// Search lists records. Doctors only see their own.
func (s *Service) Search(ctx context.Context, params map[string]string, actorID uuid.UUID, actorRole string, limit, offset int) ([]*MedicalRecord, int, error) {
	if actorRole == "doctor" {
		params["doctor"] = actorID.String()
	}
	return s.records.Search(ctx, params, limit, offset)
}

func (s *Service) PatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.records.PatientHistory(ctx, patientID, limit, offset)
}

// SoftDelete removes a draft record. Only the owning doctor may delete.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole string) error {
	r, err := s.records.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if actorRole == "doctor" && r.DoctorID != actorID {
		return ErrAccessDenied
	}
	if r.Status != "draft" {
		return fmt.Errorf("only draft records can be deleted")
	}
	return s.records.SetActive(ctx, id, false)
}

func (s *Service) Stats(ctx context.Context, actorID uuid.UUID, actorRole string) (*Stats, error) {
	doctorID := uuid.Nil
	if actorRole == "doctor" {
		doctorID = actorID
	}
	return s.records.Stats(ctx, doctorID)
}
