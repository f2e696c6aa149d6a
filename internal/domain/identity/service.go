package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrStorage is returned in place of database errors, which are logged.
var ErrStorage = errors.New("records are temporarily unavailable, please try again")

type Service struct {
	patients PatientRepository
	staff    StaffRepository
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(patients PatientRepository, staff StaffRepository, opts ...Option) *Service {
	s := &Service{patients: patients, staff: staff, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) storageErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Msg("identity storage failure")
	return ErrStorage
}

// -- Patient --

func (s *Service) validatePatient(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if !validSexes[p.Sex] {
		return fmt.Errorf("sex must be male or female")
	}
	if p.BirthDate.IsZero() {
		return fmt.Errorf("birth_date is required")
	}
	if p.BirthDate.After(s.now()) {
		return fmt.Errorf("birth_date cannot be in the future")
	}
	if p.CivilStatus != nil && *p.CivilStatus != "" && !validCivilStatuses[*p.CivilStatus] {
		return fmt.Errorf("invalid civil_status: %s", *p.CivilStatus)
	}
	if p.BloodType != nil && *p.BloodType != "" && !validBloodTypes[*p.BloodType] {
		return fmt.Errorf("invalid blood_type: %s", *p.BloodType)
	}
	return nil
}

// RegisterPatient validates and stores a new patient. A patient number is
// generated when the caller does not bring one from a paper record.
func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if err := s.validatePatient(p); err != nil {
		return err
	}
	p.PatientNumber = strings.TrimSpace(p.PatientNumber)
	p.Active = true
	if err := s.patients.Create(ctx, p); err != nil {
		return s.storageErr("register patient", err)
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Str("patient_number", p.PatientNumber).Msg("patient registered")
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageErr("get patient", err)
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.validatePatient(p); err != nil {
		return err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return s.storageErr("update patient", err)
	}
	return nil
}

// DeactivatePatient hides the patient from listings. Records that reference
// the patient are kept.
func (s *Service) DeactivatePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.patients.Deactivate(ctx, id); err != nil {
		return s.storageErr("deactivate patient", err)
	}
	return nil
}

func (s *Service) ListPatients(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	items, total, err := s.patients.Search(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, s.storageErr("list patients", err)
	}
	return items, total, nil
}

// -- Staff --

func validateStaff(st *Staff) error {
	st.FirstName = strings.TrimSpace(st.FirstName)
	st.LastName = strings.TrimSpace(st.LastName)
	if st.FirstName == "" || st.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if !validStaffRoles[st.Role] {
		return fmt.Errorf("invalid role: %s", st.Role)
	}
	if st.Role == StaffDoctor && (st.LicenseNumber == nil || strings.TrimSpace(*st.LicenseNumber) == "") {
		return fmt.Errorf("license_number is required for doctors")
	}
	return nil
}

func (s *Service) CreateStaff(ctx context.Context, st *Staff) error {
	if err := validateStaff(st); err != nil {
		return err
	}
	st.Active = true
	if err := s.staff.Create(ctx, st); err != nil {
		return s.storageErr("create staff", err)
	}
	return nil
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	st, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageErr("get staff", err)
	}
	return st, nil
}

// GetStaffByUserID resolves the staff record of a signed-in user.
func (s *Service) GetStaffByUserID(ctx context.Context, userID string) (*Staff, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	st, err := s.staff.GetByUserID(ctx, userID)
	if err != nil {
		return nil, s.storageErr("get staff by user", err)
	}
	return st, nil
}

func (s *Service) UpdateStaff(ctx context.Context, st *Staff) error {
	if err := validateStaff(st); err != nil {
		return err
	}
	if err := s.staff.Update(ctx, st); err != nil {
		return s.storageErr("update staff", err)
	}
	return nil
}

func (s *Service) ListStaff(ctx context.Context, role string, activeOnly bool, limit, offset int) ([]*Staff, int, error) {
	if role != "" && !validStaffRoles[role] {
		return nil, 0, fmt.Errorf("invalid role: %s", role)
	}
	items, total, err := s.staff.List(ctx, role, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, s.storageErr("list staff", err)
	}
	return items, total, nil
}
