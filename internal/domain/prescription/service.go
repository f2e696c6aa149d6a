package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/barangay/bhc/internal/domain/identity"
)

// ErrStorage is returned in place of database errors, which are logged.
var ErrStorage = errors.New("prescriptions are temporarily unavailable, please try again")

// Directory resolves the people printed on a prescription.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetStaff(ctx context.Context, id uuid.UUID) (*identity.Staff, error)
}

type Service struct {
	repo       Repository
	directory  Directory
	clinicName string
	loc        *time.Location
	logger     zerolog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithClinicName(name string) Option      { return func(s *Service) { s.clinicName = name } }
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func NewService(repo Repository, directory Directory, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		directory:  directory,
		clinicName: "Barangay Health Center",
		loc:        time.UTC,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) storageErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Msg("prescription storage failure")
	return ErrStorage
}

func validate(p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i := range p.Items {
		it := &p.Items[i]
		it.Medicine = strings.TrimSpace(it.Medicine)
		it.Dosage = strings.TrimSpace(it.Dosage)
		if it.Medicine == "" {
			return fmt.Errorf("item %d: medicine is required", i+1)
		}
		if it.Dosage == "" {
			return fmt.Errorf("item %d: dosage is required", i+1)
		}
		if it.Quantity != nil && *it.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i+1)
		}
	}
	return nil
}

// Create issues a new active prescription. Items are numbered in the order
// given.
func (s *Service) Create(ctx context.Context, p *Prescription) error {
	if err := validate(p); err != nil {
		return err
	}
	for i := range p.Items {
		p.Items[i].LineNo = i + 1
	}
	p.Status = StatusActive
	p.IssuedAt = s.now()
	p.DispensedAt = nil
	if err := s.repo.Create(ctx, p); err != nil {
		return s.storageErr("create prescription", err)
	}
	s.logger.Info().Str("prescription_id", p.ID.String()).Int("items", len(p.Items)).Msg("prescription issued")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageErr("get prescription", err)
	}
	return p, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, s.storageErr("list prescriptions", err)
	}
	return items, total, nil
}

// Dispense records that the medicines were handed out. Only active
// prescriptions can be dispensed.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, fmt.Errorf("%w: prescription is %s", ErrInvalidTransition, p.Status)
	}
	now := s.now()
	p.Status = StatusDispensed
	p.DispensedAt = &now
	if err := s.repo.UpdateStatus(ctx, p); err != nil {
		return nil, s.storageErr("dispense prescription", err)
	}
	return p, nil
}

// Cancel withdraws an active prescription.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, fmt.Errorf("%w: prescription is %s", ErrInvalidTransition, p.Status)
	}
	p.Status = StatusCancelled
	if err := s.repo.UpdateStatus(ctx, p); err != nil {
		return nil, s.storageErr("cancel prescription", err)
	}
	return p, nil
}

// PDF renders the printable slip and its suggested file name.
func (s *Service) PDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	rx, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	patient, err := s.directory.GetPatient(ctx, rx.PatientID)
	if err != nil {
		return nil, "", fmt.Errorf("load patient: %w", err)
	}
	doctor, err := s.directory.GetStaff(ctx, rx.DoctorID)
	if err != nil {
		return nil, "", fmt.Errorf("load doctor: %w", err)
	}
	out, err := RenderPDF(Document{
		ClinicName:   s.clinicName,
		Prescription: rx,
		Patient:      patient,
		Doctor:       doctor,
		Location:     s.loc,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("prescription_id", id.String()).Msg("pdf rendering failed")
		return nil, "", err
	}
	return out, FileName(patient, rx, s.loc), nil
}
