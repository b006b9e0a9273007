package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	seq      int
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	m.seq++
	p.ID = uuid.New()
	p.Code = fmt.Sprintf("PT%06d", m.seq)
	p.Active = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) GetByCode(_ context.Context, code string) (*Patient, error) {
	for _, p := range m.patients {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	existing, ok := m.patients[p.ID]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.Code = existing.Code
	p.Active = existing.Active
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	p, ok := m.patients[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.Active = active
	return nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if q, ok := params["q"]; ok && !strings.Contains(strings.ToLower(p.FullName), strings.ToLower(q)) {
			continue
		}
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockRepo) QuickSearch(_ context.Context, q string, limit int) ([]*Patient, error) {
	var result []*Patient
	for _, p := range m.patients {
		if p.Active && strings.HasPrefix(strings.ToLower(p.FullName), strings.ToLower(q)) {
			result = append(result, p)
		}
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *mockRepo) RecordVisit(_ context.Context, id uuid.UUID, at time.Time) error {
	p, ok := m.patients[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.TotalVisits++
	p.LastVisit = &at
	return nil
}

func (m *mockRepo) Stats(_ context.Context) (*Stats, error) {
	stats := &Stats{ByGender: map[string]int{}}
	for _, p := range m.patients {
		if !p.Active {
			continue
		}
		stats.Total++
		stats.ByGender[p.Gender]++
	}
	return stats, nil
}

func validPatient() *Patient {
	return &Patient{
		FullName:    "Nguyen Van An",
		DateOfBirth: time.Date(1985, 3, 12, 0, 0, 0, 0, time.UTC),
		Gender:      "male",
		Phone:       "0912345678",
	}
}

// -- Tests --

func TestCreatePatient(t *testing.T) {
	svc := NewService(newMockRepo())
	p := validPatient()

	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Code != "PT000001" {
		t.Errorf("code = %q, want PT000001", p.Code)
	}
	if !p.Active {
		t.Error("new patient should be active")
	}
	if p.Age == 0 {
		t.Error("expected derived age to be set")
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	cases := []struct {
		name   string
		mutate func(*Patient)
	}{
		{"missing name", func(p *Patient) { p.FullName = "" }},
		{"missing dob", func(p *Patient) { p.DateOfBirth = time.Time{} }},
		{"future dob", func(p *Patient) { p.DateOfBirth = time.Now().AddDate(1, 0, 0) }},
		{"bad gender", func(p *Patient) { p.Gender = "unknown" }},
		{"short phone", func(p *Patient) { p.Phone = "12345" }},
		{"alpha phone", func(p *Patient) { p.Phone = "09123abc78" }},
		{"bad blood type", func(p *Patient) { bt := "C+"; p.BloodType = &bt }},
	}
	for _, tc := range cases {
		p := validPatient()
		tc.mutate(p)
		if err := svc.Create(context.Background(), p); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestPatientAge(t *testing.T) {
	p := &Patient{DateOfBirth: time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)}

	p.ComputeAge(time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	if p.Age != 34 {
		t.Errorf("day before birthday: age = %d, want 34", p.Age)
	}

	p.ComputeAge(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	if p.Age != 35 {
		t.Errorf("on birthday: age = %d, want 35", p.Age)
	}
}

func TestUpdatePatient_InactiveRejected(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.SoftDelete(context.Background(), p.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	p.FullName = "Changed Name"
	if err := svc.Update(context.Background(), p); err == nil {
		t.Error("expected update of inactive patient to fail")
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.SoftDelete(context.Background(), p.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if repo.patients[p.ID].Active {
		t.Error("patient still active after soft delete")
	}

	if err := svc.Restore(context.Background(), p.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !repo.patients[p.ID].Active {
		t.Error("patient not active after restore")
	}
}

func TestRecordVisit(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	at := time.Now()
	if err := svc.RecordVisit(context.Background(), p.ID, at); err != nil {
		t.Fatalf("RecordVisit: %v", err)
	}
	if repo.patients[p.ID].TotalVisits != 1 {
		t.Errorf("total visits = %d, want 1", repo.patients[p.ID].TotalVisits)
	}
	if repo.patients[p.ID].LastVisit == nil {
		t.Error("last visit not set")
	}
}

func TestQuickSearch_RequiresQuery(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.QuickSearch(context.Background(), ""); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestExists(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := validPatient()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, _ := svc.Exists(context.Background(), p.ID)
	if !ok {
		t.Error("expected existing active patient")
	}

	ok, _ = svc.Exists(context.Background(), uuid.New())
	if ok {
		t.Error("expected missing patient to not exist")
	}

	_ = svc.SoftDelete(context.Background(), p.ID)
	ok, _ = svc.Exists(context.Background(), p.ID)
	if ok {
		t.Error("inactive patient should not count as existing")
	}
}
