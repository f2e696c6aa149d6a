package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/barangay/bhc/internal/domain/scheduling"
)

// Repository runs the aggregate queries behind the dashboards.
type Repository interface {
	// DayQueue lists the appointments on date, for one doctor when doctorID is
	// set. HasVitals reports vitals recorded in [dayStart, dayEnd).
	DayQueue(ctx context.Context, date scheduling.Date, dayStart, dayEnd time.Time, doctorID *uuid.UUID) ([]QueueEntry, error)
	DraftAssessments(ctx context.Context, doctorID uuid.UUID, limit int) ([]PendingAssessment, error)
	CountActivePatients(ctx context.Context) (int, error)
	StaffByRole(ctx context.Context) (map[string]int, error)
	AppointmentsByStatus(ctx context.Context, from, to scheduling.Date) (map[string]int, error)
	TopConsultationTypes(ctx context.Context, from, to scheduling.Date, limit int) ([]TypeCount, error)
}
