package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/barangay/bhc/internal/domain/scheduling"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

const (
	SexMale   = "male"
	SexFemale = "female"
)

var validSexes = map[string]bool{SexMale: true, SexFemale: true}

var validCivilStatuses = map[string]bool{
	"single": true, "married": true, "widowed": true, "separated": true, "live_in": true,
}

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true, "AB+": true, "AB-": true, "O+": true, "O-": true,
}

type Patient struct {
	ID                     uuid.UUID       `db:"id" json:"id"`
	PatientNumber          string          `db:"patient_number" json:"patient_number"`
	FirstName              string          `db:"first_name" json:"first_name"`
	MiddleName             *string         `db:"middle_name" json:"middle_name,omitempty"`
	LastName               string          `db:"last_name" json:"last_name"`
	Suffix                 *string         `db:"suffix" json:"suffix,omitempty"`
	BirthDate              scheduling.Date `db:"birth_date" json:"birth_date"`
	Sex                    string          `db:"sex" json:"sex"`
	CivilStatus            *string         `db:"civil_status" json:"civil_status,omitempty"`
	ContactNumber          *string         `db:"contact_number" json:"contact_number,omitempty"`
	Email                  *string         `db:"email" json:"email,omitempty"`
	AddressLine            *string         `db:"address_line" json:"address_line,omitempty"`
	Purok                  *string         `db:"purok" json:"purok,omitempty"`
	Barangay               *string         `db:"barangay" json:"barangay,omitempty"`
	Municipality           *string         `db:"municipality" json:"municipality,omitempty"`
	Province               *string         `db:"province" json:"province,omitempty"`
	PhilHealthNumber       *string         `db:"philhealth_number" json:"philhealth_number,omitempty"`
	HouseholdNumber        *string         `db:"household_number" json:"household_number,omitempty"`
	BloodType              *string         `db:"blood_type" json:"blood_type,omitempty"`
	Allergies              *string         `db:"allergies" json:"allergies,omitempty"`
	EmergencyContactName   *string         `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactNumber *string         `db:"emergency_contact_number" json:"emergency_contact_number,omitempty"`
	Active                 bool            `db:"active" json:"active"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at" json:"updated_at"`
}

// FullName renders "First M. Last Suffix".
func (p *Patient) FullName() string {
	parts := []string{p.FirstName}
	if p.MiddleName != nil && *p.MiddleName != "" {
		parts = append(parts, string([]rune(*p.MiddleName)[0])+".")
	}
	parts = append(parts, p.LastName)
	if p.Suffix != nil && *p.Suffix != "" {
		parts = append(parts, *p.Suffix)
	}
	return strings.Join(parts, " ")
}

// AgeOn returns the patient's age in whole years on the given day.
func (p *Patient) AgeOn(day time.Time) int {
	age := day.Year() - p.BirthDate.Year()
	if day.Month() < p.BirthDate.Month() || (day.Month() == p.BirthDate.Month() && day.Day() < p.BirthDate.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// FormatPatientNumber renders the clinic record number, e.g. BHC-2026-000042.
func FormatPatientNumber(year int, seq int64) string {
	return fmt.Sprintf("BHC-%04d-%06d", year, seq)
}

// PatientFilter narrows patient listings. Query matches names and the
// patient number.
type PatientFilter struct {
	Query           string
	Purok           string
	PhilHealth      string
	IncludeInactive bool
	Sort            string
}

// Staff roles stored in the staff table. Patients sign in with the patient
// role but have no staff record.
const (
	StaffDoctor = "doctor"
	StaffNurse  = "nurse"
	StaffAdmin  = "admin"
	StaffDesk   = "staff"
)

var validStaffRoles = map[string]bool{StaffDoctor: true, StaffNurse: true, StaffAdmin: true, StaffDesk: true}

type Staff struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	Role           string    `db:"role" json:"role"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	LicenseNumber  *string   `db:"license_number" json:"license_number,omitempty"`
	ContactNumber  *string   `db:"contact_number" json:"contact_number,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName is the name printed on documents, prefixed "Dr." for doctors.
func (s *Staff) DisplayName() string {
	name := s.FirstName + " " + s.LastName
	if s.Role == StaffDoctor {
		return "Dr. " + name
	}
	return name
}
