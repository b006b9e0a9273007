package prescription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MedicationItem maps to the prescription_medication table. MedicineName is a
// snapshot taken at creation so the prescription stays readable even if the
// catalog entry is renamed or retired.
type MedicationItem struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PrescriptionID uuid.UUID  `db:"prescription_id" json:"prescriptionId"`
	MedicineID     uuid.UUID  `db:"medicine_id" json:"medicineId"`
	MedicineName   string     `db:"medicine_name" json:"medicineName"`
	Dosage         *string    `db:"dosage" json:"dosage,omitempty"`
	Frequency      *string    `db:"frequency" json:"frequency,omitempty"`
	Duration       *string    `db:"duration" json:"duration,omitempty"`
	Quantity       int        `db:"quantity" json:"quantity"`
	UnitPrice      int64      `db:"unit_price" json:"unitPrice"`
	Total          int64      `db:"total" json:"total"`
	Instructions   *string    `db:"instructions" json:"instructions,omitempty"`
	MealTiming     *string    `db:"meal_timing" json:"mealTiming,omitempty"`
	Warnings       *string    `db:"warnings" json:"warnings,omitempty"`
	Dispensed      bool       `db:"dispensed" json:"dispensed"`
	DispensedAt    *time.Time `db:"dispensed_at" json:"dispensedAt,omitempty"`
	DispensedBy    *uuid.UUID `db:"dispensed_by" json:"dispensedBy,omitempty"`
}

// Prescription maps to the prescription table plus its medication lines.
type Prescription struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Code             string     `db:"code" json:"code"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patientId"`
	DoctorID         uuid.UUID  `db:"doctor_id" json:"doctorId"`
	RecordID         *uuid.UUID `db:"record_id" json:"medicalRecordId,omitempty"`
	PrescriptionDate time.Time  `db:"prescription_date" json:"prescriptionDate"`
	Diagnosis        *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Symptoms         []string   `db:"symptoms" json:"symptoms,omitempty"`
	Instructions     *string    `db:"instructions" json:"instructions,omitempty"`
	FollowUpDate     *time.Time `db:"follow_up_date" json:"followUpDate,omitempty"`
	TotalAmount      int64      `db:"total_amount" json:"totalAmount"`
	Status           string     `db:"status" json:"status"`
	Priority         string     `db:"priority" json:"priority"`
	ValidUntil       time.Time  `db:"valid_until" json:"validUntil"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	PharmacyNotes    *string    `db:"pharmacy_notes" json:"pharmacyNotes,omitempty"`
	Active           bool       `db:"active" json:"active"`
	IssuedBy         *uuid.UUID `db:"issued_by" json:"issuedBy,omitempty"`
	IssuedAt         *time.Time `db:"issued_at" json:"issuedAt,omitempty"`
	CancelReason     *string    `db:"cancel_reason" json:"cancelReason,omitempty"`
	CancelledBy      *uuid.UUID `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancelledAt      *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CreatedBy        *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`

	Medications []MedicationItem `json:"medications"`
}

// ComputeTotals recalculates every line total and the prescription total in
// place. Calling it repeatedly yields the same result.
func (p *Prescription) ComputeTotals() {
	var total int64
	for i := range p.Medications {
		p.Medications[i].Total = int64(p.Medications[i].Quantity) * p.Medications[i].UnitPrice
		total += p.Medications[i].Total
	}
	p.TotalAmount = total
}

// DispenseProgress reports how many lines have been handed out.
func (p *Prescription) DispenseProgress() (dispensed, total int) {
	for _, m := range p.Medications {
		if m.Dispensed {
			dispensed++
		}
	}
	return dispensed, len(p.Medications)
}

// DispenseStatus derives the status implied by the current line flags, or ""
// when no line has been dispensed yet.
func (p *Prescription) DispenseStatus() string {
	done, total := p.DispenseProgress()
	switch {
	case total > 0 && done == total:
		return "fully-dispensed"
	case done > 0:
		return "partially-dispensed"
	default:
		return ""
	}
}

// IsTerminal reports whether the prescription can no longer change.
func (p *Prescription) IsTerminal() bool {
	return p.Status == "fully-dispensed" || p.Status == "cancelled"
}

// SkippedLine explains why a dispense request left a line untouched.
type SkippedLine struct {
	LineID       uuid.UUID `json:"lineId"`
	MedicineName string    `json:"medicineName"`
	Reason       string    `json:"reason"`
}

// DispenseResult reports the outcome of one dispense batch.
type DispenseResult struct {
	Prescription *Prescription `json:"prescription"`
	Dispensed    []uuid.UUID   `json:"dispensed"`
	Skipped      []SkippedLine `json:"skipped"`
}

// StockShortage is one medicine that cannot cover a requested quantity.
type StockShortage struct {
	MedicineName string `json:"medicineName"`
	Requested    int    `json:"requested"`
	Available    int    `json:"available"`
}

// StockError rejects a prescription whose lines exceed current stock.
type StockError struct {
	Shortages []StockShortage
}

func (e *StockError) Error() string {
	names := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		names[i] = fmt.Sprintf("%s (requested %d, available %d)", s.MedicineName, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(names, ", ")
}

// MedicineUsage is one row of the most-prescribed ranking.
type MedicineUsage struct {
	MedicineName string `json:"medicineName"`
	Count        int    `json:"count"`
	Quantity     int    `json:"quantity"`
}

// Stats summarizes the prescription ledger.
type Stats struct {
	Total          int             `json:"total"`
	Today          int             `json:"today"`
	ThisMonth      int             `json:"thisMonth"`
	ByStatus       map[string]int  `json:"byStatus"`
	Revenue        int64           `json:"revenue"`
	MostPrescribed []MedicineUsage `json:"mostPrescribed"`
}
