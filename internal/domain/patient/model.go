package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	Code                 string     `db:"code" json:"code"`
	FullName             string     `db:"full_name" json:"fullName"`
	DateOfBirth          time.Time  `db:"date_of_birth" json:"dateOfBirth"`
	Gender               string     `db:"gender" json:"gender"`
	Phone                string     `db:"phone" json:"phone"`
	Email                *string    `db:"email" json:"email,omitempty"`
	Address              *string    `db:"address" json:"address,omitempty"`
	IdentityCard         *string    `db:"identity_card" json:"identityCard,omitempty"`
	InsuranceNumber      *string    `db:"insurance_number" json:"insuranceNumber,omitempty"`
	EmergencyName        *string    `db:"emergency_name" json:"emergencyContactName,omitempty"`
	EmergencyRelation    *string    `db:"emergency_relation" json:"emergencyContactRelationship,omitempty"`
	EmergencyPhone       *string    `db:"emergency_phone" json:"emergencyContactPhone,omitempty"`
	MedicalHistory       *string    `db:"medical_history" json:"medicalHistory,omitempty"`
	Allergies            []string   `db:"allergies" json:"allergies,omitempty"`
	BloodType            *string    `db:"blood_type" json:"bloodType,omitempty"`
	HeightCm             *float64   `db:"height_cm" json:"height,omitempty"`
	WeightKg             *float64   `db:"weight_kg" json:"weight,omitempty"`
	Notes                *string    `db:"notes" json:"notes,omitempty"`
	Active               bool       `db:"active" json:"active"`
	CreatedBy            *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	LastVisit            *time.Time `db:"last_visit" json:"lastVisit,omitempty"`
	TotalVisits          int        `db:"total_visits" json:"totalVisits"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`

	// Derived, not stored.
	Age int `db:"-" json:"age"`
}

// ComputeAge sets the derived age from the date of birth.
func (p *Patient) ComputeAge(now time.Time) {
	age := now.Year() - p.DateOfBirth.Year()
	if now.YearDay() < p.DateOfBirth.YearDay() {
		age--
	}
	if age < 0 {
		age = 0
	}
	p.Age = age
}

// Stats summarizes the patient directory.
type Stats struct {
	Total        int            `json:"total"`
	NewThisMonth int            `json:"newThisMonth"`
	ByGender     map[string]int `json:"byGender"`
}
