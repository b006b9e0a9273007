package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var validCategories = map[string]bool{
	"antibiotic": true, "analgesic": true, "antipyretic": true, "antihistamine": true,
	"antacid": true, "vitamin": true, "supplement": true, "cardiovascular": true,
	"respiratory": true, "dermatological": true, "other": true,
}

var validDosageForms = map[string]bool{
	"tablet": true, "capsule": true, "syrup": true, "injection": true,
	"cream": true, "ointment": true, "drops": true, "inhaler": true,
	"suppository": true, "other": true,
}

var validAdjustmentTypes = map[string]bool{
	"add": true, "subtract": true, "set": true,
}

type Service struct {
	medicines Repository
}

func NewService(medicines Repository) *Service {
	return &Service{medicines: medicines}
}

func (s *Service) validate(m *Medicine) error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validCategories[m.Category] {
		return fmt.Errorf("invalid category: %s", m.Category)
	}
	if !validDosageForms[m.DosageForm] {
		return fmt.Errorf("invalid dosage form: %s", m.DosageForm)
	}
	if m.Unit == "" {
		return fmt.Errorf("unit is required")
	}
	if m.Price < 0 || m.CostPrice < 0 {
		return fmt.Errorf("prices cannot be negative")
	}
	if m.StockQuantity < 0 {
		return fmt.Errorf("stock quantity cannot be negative")
	}
	if m.MinQuantity < 0 {
		return fmt.Errorf("minimum quantity cannot be negative")
	}
	if m.ExpiryDate != nil && m.ManufacturingDate != nil && m.ExpiryDate.Before(*m.ManufacturingDate) {
		return fmt.Errorf("expiry date cannot precede manufacturing date")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, m *Medicine) error {
	if err := s.validate(m); err != nil {
		return err
	}
	if err := s.medicines.Create(ctx, m); err != nil {
		return err
	}
	m.ComputeFlags(time.Now())
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.ComputeFlags(time.Now())
	return m, nil
}

func (s *Service) Update(ctx context.Context, m *Medicine) error {
	existing, err := s.medicines.GetByID(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("medicine not found")
	}
	// Stock changes go through AdjustStock only.
	m.StockQuantity = existing.StockQuantity
	if err := s.validate(m); err != nil {
		return err
	}
	if err := s.medicines.Update(ctx, m); err != nil {
		return err
	}
	m.ComputeFlags(time.Now())
	return nil
}

// AdjustStock applies a manual stock adjustment. The resulting quantity must
// not be negative.
func (s *Service) AdjustStock(ctx context.Context, id uuid.UUID, adjustType string, quantity int, actor uuid.UUID) (*Medicine, error) {
	if !validAdjustmentTypes[adjustType] {
		return nil, fmt.Errorf("invalid adjustment type: %s", adjustType)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("quantity cannot be negative")
	}

	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("medicine not found")
	}

	next := m.StockQuantity
	switch adjustType {
	case "add":
		next += quantity
	case "subtract":
		next -= quantity
	case "set":
		next = quantity
	}
	if next < 0 {
		return nil, fmt.Errorf("insufficient stock: have %d, tried to subtract %d", m.StockQuantity, quantity)
	}

	if err := s.medicines.SetStock(ctx, id, next, actor); err != nil {
		return nil, err
	}
	m.StockQuantity = next
	m.UpdatedBy = &actor
	m.ComputeFlags(time.Now())
	return m, nil
}

func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.medicines.GetByID(ctx, id); err != nil {
		return fmt.Errorf("medicine not found")
	}
	return s.medicines.SetActive(ctx, id, false)
}

func (s *Service) Restore(ctx context.Context, id uuid.UUID) error {
	if _, err := s.medicines.GetByID(ctx, id); err != nil {
		return fmt.Errorf("medicine not found")
	}
	return s.medicines.SetActive(ctx, id, true)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Medicine, int, error) {
	items, total, err := s.medicines.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := time.Now()
	for _, m := range items {
		m.ComputeFlags(now)
	}
	return items, total, nil
}

func (s *Service) QuickSearch(ctx context.Context, q string) ([]*Medicine, error) {
	if q == "" {
		return nil, fmt.Errorf("search query is required")
	}
	items, err := s.medicines.QuickSearch(ctx, q, 10)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, m := range items {
		m.ComputeFlags(now)
	}
	return items, nil
}

func (s *Service) Alerts(ctx context.Context) (*Alerts, error) {
	alerts, err := s.medicines.Alerts(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, group := range [][]*Medicine{alerts.LowStock, alerts.Expired, alerts.ExpiringSoon} {
		for _, m := range group {
			m.ComputeFlags(now)
		}
	}
	return alerts, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.medicines.Stats(ctx)
}

// Lookup returns an active medicine for prescription validation.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("medicine not found")
	}
	if !m.Active {
		return nil, fmt.Errorf("medicine %s is inactive", m.Name)
	}
	return m, nil
}

// Dispense atomically decrements stock for one dispense line. Returns false
// when remaining stock is insufficient.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, fmt.Errorf("quantity must be positive")
	}
	return s.medicines.DecrementStock(ctx, id, quantity)
}
