package patient

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true,
}

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

var phonePattern = regexp.MustCompile(`^[0-9]{10,11}$`)

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

func (s *Service) validate(p *Patient) error {
	if p.FullName == "" {
		return fmt.Errorf("full name is required")
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("date of birth is required")
	}
	if p.DateOfBirth.After(time.Now()) {
		return fmt.Errorf("date of birth cannot be in the future")
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	if !phonePattern.MatchString(p.Phone) {
		return fmt.Errorf("phone must be 10-11 digits")
	}
	if p.BloodType != nil && !validBloodTypes[*p.BloodType] {
		return fmt.Errorf("invalid blood type: %s", *p.BloodType)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	p.ComputeAge(time.Now())
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ComputeAge(time.Now())
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("patient not found")
	}
	if !existing.Active {
		return fmt.Errorf("cannot update an inactive patient")
	}
	if err := s.validate(p); err != nil {
		return err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return err
	}
	p.Code = existing.Code
	p.ComputeAge(time.Now())
	return nil
}

func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return fmt.Errorf("patient not found")
	}
	return s.patients.SetActive(ctx, id, false)
}

func (s *Service) Restore(ctx context.Context, id uuid.UUID) error {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return fmt.Errorf("patient not found")
	}
	return s.patients.SetActive(ctx, id, true)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	items, total, err := s.patients.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := time.Now()
	for _, p := range items {
		p.ComputeAge(now)
	}
	return items, total, nil
}

func (s *Service) QuickSearch(ctx context.Context, q string) ([]*Patient, error) {
	if q == "" {
		return nil, fmt.Errorf("search query is required")
	}
	items, err := s.patients.QuickSearch(ctx, q, 10)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, p := range items {
		p.ComputeAge(now)
	}
	return items, nil
}

// RecordVisit bumps the visit counter when an appointment is booked.
func (s *Service) RecordVisit(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.patients.RecordVisit(ctx, id, at)
}

// Exists reports whether an active patient with the given id exists. Used by
// the scheduling and prescription services through a narrow interface.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return false, nil
	}
	return p.Active, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.patients.Stats(ctx)
}
