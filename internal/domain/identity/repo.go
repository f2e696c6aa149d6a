package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	// Create stores p, assigning a patient number when none is set.
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error)
}

type StaffRepository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	GetByUserID(ctx context.Context, userID string) (*Staff, error)
	Update(ctx context.Context, s *Staff) error
	List(ctx context.Context, role string, activeOnly bool, limit, offset int) ([]*Staff, int, error)
}
