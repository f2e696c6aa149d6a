package assessment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCompleted = errors.New("assessment is already completed")
)

const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
)

// VitalSigns is one set of measurements taken at the triage desk.
type VitalSigns struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID    *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	RecordedBy       *string    `db:"recorded_by" json:"recorded_by,omitempty"`
	Systolic         *int       `db:"systolic" json:"systolic,omitempty"`
	Diastolic        *int       `db:"diastolic" json:"diastolic,omitempty"`
	TemperatureC     *float64   `db:"temperature_c" json:"temperature_c,omitempty"`
	PulseRate        *int       `db:"pulse_rate" json:"pulse_rate,omitempty"`
	RespiratoryRate  *int       `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	OxygenSaturation *int       `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	WeightKg         *float64   `db:"weight_kg" json:"weight_kg,omitempty"`
	HeightCm         *float64   `db:"height_cm" json:"height_cm,omitempty"`
	BMI              *float64   `db:"bmi" json:"bmi,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	RecordedAt       time.Time  `db:"recorded_at" json:"recorded_at"`
}

// BloodPressure renders "120/80", or "" when either reading is missing.
func (v *VitalSigns) BloodPressure() string {
	if v.Systolic == nil || v.Diastolic == nil {
		return ""
	}
	return fmt.Sprintf("%d/%d", *v.Systolic, *v.Diastolic)
}

// ComputeBMI returns weight / height² rounded to two decimals.
func ComputeBMI(weightKg, heightCm float64) float64 {
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*100) / 100
}

// BMIClass buckets a BMI with the WHO adult cut-offs.
func BMIClass(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "underweight"
	case bmi < 25:
		return "normal"
	case bmi < 30:
		return "overweight"
	default:
		return "obese"
	}
}

type rangeCheck struct {
	field    string
	min, max float64
}

var (
	systolicRange    = rangeCheck{"systolic", 50, 260}
	diastolicRange   = rangeCheck{"diastolic", 30, 160}
	temperatureRange = rangeCheck{"temperature_c", 30, 45}
	pulseRange       = rangeCheck{"pulse_rate", 20, 250}
	respiratoryRange = rangeCheck{"respiratory_rate", 5, 80}
	oxygenRange      = rangeCheck{"oxygen_saturation", 50, 100}
	weightRange      = rangeCheck{"weight_kg", 0.5, 350}
	heightRange      = rangeCheck{"height_cm", 30, 250}
)

func (r rangeCheck) check(v float64) error {
	if v < r.min || v > r.max {
		return fmt.Errorf("%s must be between %g and %g", r.field, r.min, r.max)
	}
	return nil
}

// Assessment is the doctor's consultation note.
type Assessment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	DoctorID       uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ChiefComplaint string     `db:"chief_complaint" json:"chief_complaint"`
	History        *string    `db:"history" json:"history,omitempty"`
	Findings       *string    `db:"findings" json:"findings,omitempty"`
	Diagnosis      *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Plan           *string    `db:"plan" json:"plan,omitempty"`
	Status         string     `db:"status" json:"status"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
