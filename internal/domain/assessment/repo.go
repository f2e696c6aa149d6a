package assessment

import (
	"context"

	"github.com/google/uuid"
)

type VitalsRepository interface {
	Create(ctx context.Context, v *VitalSigns) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalSigns, int, error)
	Latest(ctx context.Context, patientID uuid.UUID) (*VitalSigns, error)
}

type AssessmentRepository interface {
	Create(ctx context.Context, a *Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error)
	Update(ctx context.Context, a *Assessment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error)
}
