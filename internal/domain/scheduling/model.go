package scheduling

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSlotUnavailable   = errors.New("the selected time is no longer available")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownType       = errors.New("unknown consultation type")
	ErrBookingBusy       = errors.New("another booking for this doctor and date is in progress")
	ErrHoldMismatch      = errors.New("the hold is for a different doctor, date, time or consultation type")
	ErrHoldNotOwned      = errors.New("the hold belongs to another user")
	// ErrUnknownParty is returned when the patient or doctor id does not exist.
	ErrUnknownParty = errors.New("unknown patient or doctor")
)

// Appointment statuses.
const (
	StatusDraft     = "Draft"
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

var validAppointmentStatuses = map[string]bool{
	StatusDraft: true, StatusPending: true, StatusCompleted: true, StatusCancelled: true,
}

// DefaultSlotMinutes is used for consultation types without a known duration.
const DefaultSlotMinutes = 30

// Window is a half-open time-of-day range [Start, End).
type Window struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// DoctorAvailability is a doctor's weekly clinic schedule.
type DoctorAvailability struct {
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Monday      bool       `db:"monday" json:"monday"`
	Tuesday     bool       `db:"tuesday" json:"tuesday"`
	Wednesday   bool       `db:"wednesday" json:"wednesday"`
	Thursday    bool       `db:"thursday" json:"thursday"`
	Friday      bool       `db:"friday" json:"friday"`
	Saturday    bool       `db:"saturday" json:"saturday"`
	Sunday      bool       `db:"sunday" json:"sunday"`
	StartTime   TimeOfDay  `db:"start_time" json:"start_time"`
	EndTime     TimeOfDay  `db:"end_time" json:"end_time"`
	IsAvailable bool       `db:"is_available" json:"is_available"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	// IsDefault marks a record fabricated for a doctor who has none stored.
	IsDefault bool `db:"-" json:"is_default"`
}

// DefaultAvailability is the schedule assumed for a doctor with no stored
// record: every day, 08:00 to 17:00.
func DefaultAvailability(doctorID uuid.UUID) *DoctorAvailability {
	return &DoctorAvailability{
		DoctorID:    doctorID,
		Monday:      true,
		Tuesday:     true,
		Wednesday:   true,
		Thursday:    true,
		Friday:      true,
		Saturday:    true,
		Sunday:      true,
		StartTime:   NewTimeOfDay(8, 0),
		EndTime:     NewTimeOfDay(17, 0),
		IsAvailable: true,
		IsDefault:   true,
	}
}

func (a *DoctorAvailability) WorksOn(d time.Weekday) bool {
	switch d {
	case time.Monday:
		return a.Monday
	case time.Tuesday:
		return a.Tuesday
	case time.Wednesday:
		return a.Wednesday
	case time.Thursday:
		return a.Thursday
	case time.Friday:
		return a.Friday
	case time.Saturday:
		return a.Saturday
	case time.Sunday:
		return a.Sunday
	}
	return false
}

func (a *DoctorAvailability) Window() Window {
	return Window{Start: a.StartTime, End: a.EndTime}
}

// ConsultationType is a kind of visit with its own days, hours and slot length.
type ConsultationType struct {
	Code            string         `db:"code" json:"code"`
	Name            string         `db:"name" json:"name"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	AllowedDays     []time.Weekday `db:"allowed_days" json:"allowed_days"`
	Windows         []Window       `db:"windows" json:"windows"`
	Active          bool           `db:"active" json:"active"`
	UpdatedAt       *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

func (ct *ConsultationType) OffersOn(d time.Weekday) bool {
	for _, a := range ct.AllowedDays {
		if a == d {
			return true
		}
	}
	return false
}

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}

// BuiltinConsultationTypes is the catalog every new barangay schema is
// seeded with.
func BuiltinConsultationTypes() []ConsultationType {
	return []ConsultationType{
		{
			Code: "general_consult", Name: "General Consultation", DurationMinutes: 30,
			AllowedDays: weekdays,
			Windows: []Window{
				{NewTimeOfDay(8, 0), NewTimeOfDay(11, 0)},
				{NewTimeOfDay(13, 0), NewTimeOfDay(16, 0)},
			},
			Active: true,
		},
		{
			Code: "dental", Name: "Dental", DurationMinutes: 45,
			AllowedDays: []time.Weekday{time.Tuesday, time.Thursday},
			Windows:     []Window{{NewTimeOfDay(8, 0), NewTimeOfDay(12, 0)}},
			Active:      true,
		},
		{
			Code: "immunization", Name: "Immunization", DurationMinutes: 20,
			AllowedDays: []time.Weekday{time.Wednesday},
			Windows:     []Window{{NewTimeOfDay(8, 0), NewTimeOfDay(12, 0)}},
			Active:      true,
		},
		{
			Code: "prenatal", Name: "Prenatal Check-up", DurationMinutes: 30,
			AllowedDays: []time.Weekday{time.Monday, time.Friday},
			Windows:     []Window{{NewTimeOfDay(8, 0), NewTimeOfDay(12, 0)}},
			Active:      true,
		},
		{
			Code: "family_planning", Name: "Family Planning", DurationMinutes: 30,
			AllowedDays: []time.Weekday{time.Thursday},
			Windows:     []Window{{NewTimeOfDay(13, 0), NewTimeOfDay(16, 0)}},
			Active:      true,
		},
	}
}

var builtinDurations = map[string]int{
	"general_consult": 30,
	"dental":          45,
	"immunization":    20,
	"prenatal":        30,
	"family_planning": 30,
}

// SlotDuration returns the built-in slot length in minutes for a type code.
func SlotDuration(code string) int {
	if d, ok := builtinDurations[code]; ok {
		return d
	}
	return DefaultSlotMinutes
}

// Appointment is a booked visit. Appointments are never deleted; cancelling
// only changes the status.
type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentDate    Date       `db:"appointment_date" json:"appointment_date"`
	AppointmentTime    TimeOfDay  `db:"appointment_time" json:"appointment_time"`
	ConsultationType   string     `db:"consultation_type" json:"consultation_type"`
	Status             string     `db:"status" json:"status"`
	Reason             *string    `db:"reason" json:"reason,omitempty"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedBy          *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// ConsultationTimeSlot is a provisional hold on a time while a booking is
// being filled in. Expired holds are ignored.
type ConsultationTimeSlot struct {
	ID               uuid.UUID `db:"id" json:"id"`
	DoctorID         uuid.UUID `db:"doctor_id" json:"doctor_id"`
	SlotDate         Date      `db:"slot_date" json:"slot_date"`
	SlotTime         TimeOfDay `db:"slot_time" json:"slot_time"`
	ConsultationType string    `db:"consultation_type" json:"consultation_type"`
	HeldBy           string    `db:"held_by" json:"held_by"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// AppointmentFilter narrows ListAppointments. Zero values are ignored.
type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Date      *Date
	From      *Date
	To        *Date
	Status    string
}
