package dashboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/barangay/bhc/internal/domain/scheduling"
)

// QueueEntry is one appointment of the day with the names already resolved.
type QueueEntry struct {
	AppointmentID    uuid.UUID            `json:"appointment_id"`
	PatientID        uuid.UUID            `json:"patient_id"`
	PatientNumber    string               `json:"patient_number"`
	PatientName      string               `json:"patient_name"`
	DoctorID         uuid.UUID            `json:"doctor_id"`
	DoctorName       string               `json:"doctor_name"`
	Time             scheduling.TimeOfDay `json:"time"`
	ConsultationType string               `json:"consultation_type"`
	Status           string               `json:"status"`
	HasVitals        bool                 `json:"has_vitals"`
}

// PendingAssessment is a draft assessment still waiting for a diagnosis.
type PendingAssessment struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	ChiefComplaint string    `json:"chief_complaint"`
	CreatedAt      time.Time `json:"created_at"`
}

// TypeCount is the number of appointments booked for a consultation type.
type TypeCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DoctorDashboard struct {
	DoctorID           uuid.UUID           `json:"doctor_id"`
	Date               scheduling.Date     `json:"date"`
	Appointments       []QueueEntry        `json:"appointments"`
	StatusCounts       map[string]int      `json:"status_counts"`
	PendingAssessments []PendingAssessment `json:"pending_assessments"`
}

type NurseDashboard struct {
	Date           scheduling.Date `json:"date"`
	Queue          []QueueEntry    `json:"queue"`
	AwaitingVitals []QueueEntry    `json:"awaiting_vitals"`
	StatusCounts   map[string]int  `json:"status_counts"`
}

type AdminDashboard struct {
	From                 scheduling.Date `json:"from"`
	To                   scheduling.Date `json:"to"`
	ActivePatients       int             `json:"active_patients"`
	StaffByRole          map[string]int  `json:"staff_by_role"`
	AppointmentsByStatus map[string]int  `json:"appointments_by_status"`
	TopConsultationTypes []TypeCount     `json:"top_consultation_types"`
}
