package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// CountPair is a today/this-month tally.
type CountPair struct {
	Today     int `json:"today"`
	ThisMonth int `json:"thisMonth"`
}

// AppointmentCounts adds the backlog of not-yet-started appointments.
type AppointmentCounts struct {
	Today     int `json:"today"`
	ThisMonth int `json:"thisMonth"`
	Pending   int `json:"pending"`
}

// RevenueCounts sums non-cancelled prescription totals.
type RevenueCounts struct {
	Today     int64 `json:"today"`
	ThisMonth int64 `json:"thisMonth"`
}

// InventoryAlerts mirrors the medicine alert counters.
type InventoryAlerts struct {
	LowStock int `json:"lowStock"`
	Expired  int `json:"expired"`
}

// Overview is the dashboard landing payload. Sections the caller's role may
// not see are omitted.
type Overview struct {
	TotalPatients *int              `json:"totalPatients,omitempty"`
	ActiveDoctors *int              `json:"activeDoctors,omitempty"`
	Appointments  AppointmentCounts `json:"appointments"`
	Records       CountPair         `json:"medicalRecords"`
	Prescriptions CountPair         `json:"prescriptions"`
	Revenue       *RevenueCounts    `json:"revenue,omitempty"`
	Inventory     *InventoryAlerts  `json:"inventory,omitempty"`
}

// DailyCount is one day of the appointment chart.
type DailyCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// MonthlyRevenue is one month of the revenue chart.
type MonthlyRevenue struct {
	Month   time.Time `json:"month"`
	Revenue int64     `json:"revenue"`
}

// UpcomingAppointment is a trimmed row for the dashboard list.
type UpcomingAppointment struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	PatientName string    `json:"patientName"`
	DoctorName  string    `json:"doctorName"`
	StartTime   time.Time `json:"startTime"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
}
