package prescription

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("prescription status change not allowed")
)

const (
	StatusActive    = "active"
	StatusDispensed = "dispensed"
	StatusCancelled = "cancelled"
)

type Prescription struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	AssessmentID  *uuid.UUID `db:"assessment_id" json:"assessment_id,omitempty"`
	Diagnosis     *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	Status        string     `db:"status" json:"status"`
	IssuedAt      time.Time  `db:"issued_at" json:"issued_at"`
	DispensedAt   *time.Time `db:"dispensed_at" json:"dispensed_at,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	Items         []Item     `db:"-" json:"items"`
}

// Item is one medicine line, numbered from 1 in the order written.
type Item struct {
	ID           uuid.UUID `db:"id" json:"id"`
	LineNo       int       `db:"line_no" json:"line_no"`
	Medicine     string    `db:"medicine" json:"medicine"`
	Strength     *string   `db:"strength" json:"strength,omitempty"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Frequency    *string   `db:"frequency" json:"frequency,omitempty"`
	Duration     *string   `db:"duration" json:"duration,omitempty"`
	Quantity     *int      `db:"quantity" json:"quantity,omitempty"`
	Instructions *string   `db:"instructions" json:"instructions,omitempty"`
}
