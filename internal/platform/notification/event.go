// Package notification publishes appointment lifecycle events for downstream
// consumers such as the SMS reminder gateway and the municipal health office
// reporting feed.
package notification

import (
	"context"
	"time"
)

// Event types.
const (
	AppointmentBooked        = "appointment.booked"
	AppointmentCancelled     = "appointment.cancelled"
	AppointmentCompleted     = "appointment.completed"
	AppointmentStatusChanged = "appointment.status_changed"
)

// Event describes one change to an appointment.
type Event struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	TenantID         string    `json:"tenant_id"`
	AppointmentID    string    `json:"appointment_id"`
	PatientID        string    `json:"patient_id"`
	DoctorID         string    `json:"doctor_id"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	ConsultationType string    `json:"consultation_type"`
	Status           string    `json:"status"`
	Reason           string    `json:"reason,omitempty"`
	Message          string    `json:"message,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Publisher delivers events. Callers treat failures as non-fatal: the
// appointment change has already been committed when an event is published.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}
