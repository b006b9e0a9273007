package record

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// VitalSigns is embedded in the medical record as vs_* columns.
type VitalSigns struct {
	TemperatureC    *float64 `db:"vs_temperature_c" json:"temperature,omitempty"`
	BPSystolic      *int     `db:"vs_bp_systolic" json:"bloodPressureSystolic,omitempty"`
	BPDiastolic     *int     `db:"vs_bp_diastolic" json:"bloodPressureDiastolic,omitempty"`
	HeartRate       *int     `db:"vs_heart_rate" json:"heartRate,omitempty"`
	RespiratoryRate *int     `db:"vs_respiratory_rate" json:"respiratoryRate,omitempty"`
	WeightKg        *float64 `db:"vs_weight_kg" json:"weight,omitempty"`
	HeightCm        *float64 `db:"vs_height_cm" json:"height,omitempty"`
	BMI             *float64 `db:"vs_bmi" json:"bmi,omitempty"`
	SpO2            *int     `db:"vs_spo2" json:"oxygenSaturation,omitempty"`
}

// Investigation maps to the record_investigation table.
type Investigation struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	RecordID    uuid.UUID  `db:"record_id" json:"recordId"`
	Type        string     `db:"type" json:"type"`
	Name        string     `db:"name" json:"name"`
	Result      *string    `db:"result" json:"result,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	PerformedAt *time.Time `db:"performed_at" json:"performedAt,omitempty"`
}

// Procedure maps to the record_procedure table. Fee contributes to the bill.
type Procedure struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RecordID    uuid.UUID `db:"record_id" json:"recordId"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Fee         int64     `db:"fee" json:"fee"`
}

// MedicationLine maps to the record_medication table. Total is always
// Quantity times UnitPrice.
type MedicationLine struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RecordID  uuid.UUID `db:"record_id" json:"recordId"`
	Name      string    `db:"name" json:"name"`
	Dosage    *string   `db:"dosage" json:"dosage,omitempty"`
	Frequency *string   `db:"frequency" json:"frequency,omitempty"`
	Duration  *string   `db:"duration" json:"duration,omitempty"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UnitPrice int64     `db:"unit_price" json:"unitPrice"`
	Total     int64     `db:"total" json:"total"`
}

// MedicalRecord maps to the medical_record table plus its child tables.
type MedicalRecord struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Code           string     `db:"code" json:"code"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patientId"`
	DoctorID       uuid.UUID  `db:"doctor_id" json:"doctorId"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointmentId,omitempty"`
	VisitDate      time.Time  `db:"visit_date" json:"visitDate"`
	VisitType      string     `db:"visit_type" json:"visitType"`
	ChiefComplaint string     `db:"chief_complaint" json:"chiefComplaint"`
	PresentIllness *string    `db:"present_illness" json:"presentIllness,omitempty"`
	Symptoms       []string   `db:"symptoms" json:"symptoms,omitempty"`

	VitalSigns VitalSigns `json:"vitalSigns"`

	PhysicalExam       *string  `db:"physical_exam" json:"physicalExamination,omitempty"`
	DiagnosisPrimary   string   `db:"diagnosis_primary" json:"diagnosisPrimary"`
	DiagnosisSecondary []string `db:"diagnosis_secondary" json:"diagnosisSecondary,omitempty"`
	ICD10Code          *string  `db:"icd10_code" json:"icd10Code,omitempty"`
	Severity           *string  `db:"severity" json:"severity,omitempty"`
	TreatmentPlan      *string  `db:"treatment_plan" json:"treatmentPlan,omitempty"`
	Referral           *string  `db:"referral" json:"referral,omitempty"`

	FollowUpRequired bool       `db:"follow_up_required" json:"followUpRequired"`
	FollowUpDate     *time.Time `db:"follow_up_date" json:"followUpDate,omitempty"`
	FollowUpNotes    *string    `db:"follow_up_notes" json:"followUpNotes,omitempty"`

	ConsultationFee int64 `db:"consultation_fee" json:"consultationFee"`
	BillingTotal    int64 `db:"billing_total" json:"billingTotal"`

	Status     string     `db:"status" json:"status"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	Active     bool       `db:"active" json:"active"`
	CreatedBy  *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	ReviewedBy *uuid.UUID `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`

	Investigations []Investigation  `json:"investigations,omitempty"`
	Procedures     []Procedure      `json:"procedures,omitempty"`
	Medications    []MedicationLine `json:"medications,omitempty"`
}

// ComputeDerived recalculates the BMI and the billing total in place. Calling
// it repeatedly yields the same result.
func (r *MedicalRecord) ComputeDerived() {
	if r.VitalSigns.WeightKg != nil && r.VitalSigns.HeightCm != nil && *r.VitalSigns.HeightCm > 0 {
		heightM := *r.VitalSigns.HeightCm / 100
		bmi := math.Round(*r.VitalSigns.WeightKg/(heightM*heightM)*10) / 10
		r.VitalSigns.BMI = &bmi
	}

	total := r.ConsultationFee
	for i := range r.Medications {
		r.Medications[i].Total = int64(r.Medications[i].Quantity) * r.Medications[i].UnitPrice
		total += r.Medications[i].Total
	}
	for _, p := range r.Procedures {
		total += p.Fee
	}
	r.BillingTotal = total
}

// Stats summarizes the record ledger.
type Stats struct {
	Total     int            `json:"total"`
	Today     int            `json:"today"`
	ThisMonth int            `json:"thisMonth"`
	ByStatus  map[string]int `json:"byStatus"`
}
