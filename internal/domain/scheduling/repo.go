package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AvailabilityRepository interface {
	// Get returns ErrNotFound when the doctor has no stored schedule.
	Get(ctx context.Context, doctorID uuid.UUID) (*DoctorAvailability, error)
	Upsert(ctx context.Context, a *DoctorAvailability) error
	SetWeekend(ctx context.Context, doctorID uuid.UUID, saturday, sunday bool) (*DoctorAvailability, error)
	// SetAllWeekends applies the weekend flags to every active doctor,
	// creating default schedules where missing, and returns the rows touched.
	SetAllWeekends(ctx context.Context, saturday, sunday bool) (int64, error)
}

type ConsultationTypeRepository interface {
	List(ctx context.Context, activeOnly bool) ([]*ConsultationType, error)
	Get(ctx context.Context, code string) (*ConsultationType, error)
	Upsert(ctx context.Context, ct *ConsultationType) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus persists Status, CancellationReason and CompletedAt.
	UpdateStatus(ctx context.Context, a *Appointment) error
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error)
	Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
}

type SlotHoldRepository interface {
	Create(ctx context.Context, h *ConsultationTimeSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*ConsultationTimeSlot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListActive returns holds for the doctor and date that expire after now.
	ListActive(ctx context.Context, doctorID uuid.UUID, date Date, now time.Time) ([]*ConsultationTimeSlot, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
