package assessment

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
var ErrStorage = errors.New("clinical records are temporarily unavailable, please try again")

// AppointmentCompleter moves the visit's appointment to Completed once the
// doctor signs off the assessment.
type AppointmentCompleter interface {
	CompleteAppointment(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	vitals      VitalsRepository
	assessments AssessmentRepository
	completer   AppointmentCompleter
	logger      zerolog.Logger
	now         func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(vitals VitalsRepository, assessments AssessmentRepository, completer AppointmentCompleter, opts ...Option) *Service {
	s := &Service{
		vitals:      vitals,
		assessments: assessments,
		completer:   completer,
		logger:      zerolog.Nop(),
		now:         time.Now,
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
	s.logger.Error().Err(err).Str("op", op).Msg("assessment storage failure")
	return ErrStorage
}

// -- Vital signs --

func validateVitals(v *VitalSigns) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if v.Systolic == nil && v.Diastolic == nil && v.TemperatureC == nil && v.PulseRate == nil &&
		v.RespiratoryRate == nil && v.OxygenSaturation == nil && v.WeightKg == nil && v.HeightCm == nil {
		return fmt.Errorf("at least one measurement is required")
	}
	if (v.Systolic == nil) != (v.Diastolic == nil) {
		return fmt.Errorf("systolic and diastolic must be recorded together")
	}
	ints := []struct {
		v *int
		r rangeCheck
	}{
		{v.Systolic, systolicRange},
		{v.Diastolic, diastolicRange},
		{v.PulseRate, pulseRange},
		{v.RespiratoryRate, respiratoryRange},
		{v.OxygenSaturation, oxygenRange},
	}
	for _, c := range ints {
		if c.v != nil {
			if err := c.r.check(float64(*c.v)); err != nil {
				return err
			}
		}
	}
	floats := []struct {
		v *float64
		r rangeCheck
	}{
		{v.TemperatureC, temperatureRange},
		{v.WeightKg, weightRange},
		{v.HeightCm, heightRange},
	}
	for _, c := range floats {
		if c.v != nil {
			if err := c.r.check(*c.v); err != nil {
				return err
			}
		}
	}
	if v.Systolic != nil && *v.Diastolic >= *v.Systolic {
		return fmt.Errorf("diastolic must be lower than systolic")
	}
	return nil
}

// RecordVitals validates the readings, derives the BMI when both weight and
// height are present and stores the set.
func (s *Service) RecordVitals(ctx context.Context, v *VitalSigns) error {
	if err := validateVitals(v); err != nil {
		return err
	}
	v.BMI = nil
	if v.WeightKg != nil && v.HeightCm != nil {
		bmi := ComputeBMI(*v.WeightKg, *v.HeightCm)
		v.BMI = &bmi
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = s.now()
	}
	if err := s.vitals.Create(ctx, v); err != nil {
		return s.storageErr("record vitals", err)
	}
	return nil
}

func (s *Service) ListVitals(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalSigns, int, error) {
	items, total, err := s.vitals.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, s.storageErr("list vitals", err)
	}
	return items, total, nil
}

func (s *Service) LatestVitals(ctx context.Context, patientID uuid.UUID) (*VitalSigns, error) {
	v, err := s.vitals.Latest(ctx, patientID)
	if err != nil {
		return nil, s.storageErr("latest vitals", err)
	}
	return v, nil
}

// -- Assessments --

func (s *Service) CreateAssessment(ctx context.Context, a *Assessment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	a.ChiefComplaint = strings.TrimSpace(a.ChiefComplaint)
	if a.ChiefComplaint == "" {
		return fmt.Errorf("chief_complaint is required")
	}
	a.Status = StatusDraft
	a.CompletedAt = nil
	if err := s.assessments.Create(ctx, a); err != nil {
		return s.storageErr("create assessment", err)
	}
	return nil
}

func (s *Service) GetAssessment(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageErr("get assessment", err)
	}
	return a, nil
}

// UpdateAssessment replaces the clinical notes of a draft. Completed
// assessments are read-only.
func (s *Service) UpdateAssessment(ctx context.Context, upd *Assessment) (*Assessment, error) {
	a, err := s.GetAssessment(ctx, upd.ID)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCompleted {
		return nil, ErrAlreadyCompleted
	}
	if cc := strings.TrimSpace(upd.ChiefComplaint); cc != "" {
		a.ChiefComplaint = cc
	}
	a.History = upd.History
	a.Findings = upd.Findings
	a.Diagnosis = upd.Diagnosis
	a.Plan = upd.Plan
	if err := s.assessments.Update(ctx, a); err != nil {
		return nil, s.storageErr("update assessment", err)
	}
	return a, nil
}

// CompleteAssessment signs off a draft that carries a diagnosis and completes
// the linked appointment. The appointment is completed first so a visit that
// cannot be completed leaves the assessment in draft.
func (s *Service) CompleteAssessment(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	a, err := s.GetAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCompleted {
		return a, nil
	}
	if a.Diagnosis == nil || strings.TrimSpace(*a.Diagnosis) == "" {
		return nil, fmt.Errorf("diagnosis is required to complete the assessment")
	}
	if a.AppointmentID != nil && s.completer != nil {
		if err := s.completer.CompleteAppointment(ctx, *a.AppointmentID); err != nil {
			return nil, fmt.Errorf("complete appointment: %w", err)
		}
	}
	now := s.now()
	a.Status = StatusCompleted
	a.CompletedAt = &now
	if err := s.assessments.Update(ctx, a); err != nil {
		return nil, s.storageErr("complete assessment", err)
	}
	s.logger.Info().Str("assessment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).Msg("assessment completed")
	return a, nil
}

func (s *Service) ListAssessments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error) {
	items, total, err := s.assessments.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, s.storageErr("list assessments", err)
	}
	return items, total, nil
}
