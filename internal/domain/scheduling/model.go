package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Appointment maps to the appointment table. The [StartTime, EndTime) interval
// is half-open; EndTime is always StartTime plus the duration.
type Appointment struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Code          string     `db:"code" json:"code"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patientId"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctorId"`
	StartTime     time.Time  `db:"start_time" json:"startTime"`
	EndTime       time.Time  `db:"end_time" json:"endTime"`
	DurationMin   int        `db:"duration_min" json:"duration"`
	Reason        string     `db:"reason" json:"reason"`
	Symptoms      *string    `db:"symptoms" json:"symptoms,omitempty"`
	Status        string     `db:"status" json:"status"`
	Priority      string     `db:"priority" json:"priority"`
	Type          string     `db:"type" json:"type"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	Fee           int64      `db:"fee" json:"fee"`
	PaymentStatus string     `db:"payment_status" json:"paymentStatus"`
	CreatedBy     *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy     *uuid.UUID `db:"updated_by" json:"updatedBy,omitempty"`
	CancelReason  *string    `db:"cancel_reason" json:"cancelReason,omitempty"`
	CancelledAt   *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelledBy   *uuid.UUID `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsTerminal reports whether the appointment can no longer be edited.
func (a *Appointment) IsTerminal() bool {
	return a.Status == "completed" || a.Status == "cancelled"
}

// Overlaps reports whether two half-open intervals intersect. Abutting
// intervals do not overlap.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && a.EndTime.After(start)
}

// ConflictError carries the appointments that block a requested slot.
type ConflictError struct {
	Conflicts []*Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("the doctor already has %d appointment(s) in this time slot", len(e.Conflicts))
}

// Availability is the check-availability response payload.
type Availability struct {
	Available bool           `json:"available"`
	Conflicts []*Appointment `json:"conflicts,omitempty"`
}

// Stats summarizes the appointment book.
type Stats struct {
	Today     int            `json:"today"`
	ThisWeek  int            `json:"thisWeek"`
	ThisMonth int            `json:"thisMonth"`
	ByStatus  map[string]int `json:"byStatus"`
	ByType    map[string]int `json:"byType"`
}
