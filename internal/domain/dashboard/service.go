package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/barangay/bhc/internal/domain/scheduling"
)

var ErrStorage = errors.New("dashboard is temporarily unavailable, please try again")

// MaxRangeDays bounds the admin report period.
const MaxRangeDays = 366

const (
	pendingAssessmentLimit = 20
	topTypesLimit          = 5
)

type Service struct {
	repo   Repository
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		loc:    time.UTC,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) storageErr(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("dashboard query failed")
	return ErrStorage
}

// Today is the current calendar day at the health center.
func (s *Service) Today() scheduling.Date {
	return scheduling.DateOf(s.now().In(s.loc))
}

// dayBounds returns the instants where date starts and ends at the center.
func (s *Service) dayBounds(date scheduling.Date) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// statusCounts counts entries per status. Every status is present, zero or not.
func statusCounts(entries []QueueEntry) map[string]int {
	counts := lo.CountValuesBy(entries, func(q QueueEntry) string { return q.Status })
	for _, st := range []string{scheduling.StatusDraft, scheduling.StatusPending, scheduling.StatusCompleted, scheduling.StatusCancelled} {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts
}

func sortByTime(entries []QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Time < entries[j].Time })
}

func waiting(q QueueEntry) bool {
	return q.Status == scheduling.StatusDraft || q.Status == scheduling.StatusPending
}

func (s *Service) Doctor(ctx context.Context, doctorID uuid.UUID, date scheduling.Date) (*DoctorDashboard, error) {
	if date.IsZero() {
		date = s.Today()
	}
	start, end := s.dayBounds(date)
	entries, err := s.repo.DayQueue(ctx, date, start, end, &doctorID)
	if err != nil {
		return nil, s.storageErr("doctor queue", err)
	}
	sortByTime(entries)
	pending, err := s.repo.DraftAssessments(ctx, doctorID, pendingAssessmentLimit)
	if err != nil {
		return nil, s.storageErr("draft assessments", err)
	}
	return &DoctorDashboard{
		DoctorID:           doctorID,
		Date:               date,
		Appointments:       lo.Ternary(entries == nil, []QueueEntry{}, entries),
		StatusCounts:       statusCounts(entries),
		PendingAssessments: lo.Ternary(pending == nil, []PendingAssessment{}, pending),
	}, nil
}

// Nurse shows the day's open queue across doctors and the patients in it
// whose vitals have not been taken yet.
func (s *Service) Nurse(ctx context.Context, date scheduling.Date) (*NurseDashboard, error) {
	if date.IsZero() {
		date = s.Today()
	}
	start, end := s.dayBounds(date)
	entries, err := s.repo.DayQueue(ctx, date, start, end, nil)
	if err != nil {
		return nil, s.storageErr("nurse queue", err)
	}
	sortByTime(entries)
	queue := lo.Filter(entries, func(q QueueEntry, _ int) bool { return waiting(q) })
	awaiting := lo.UniqBy(
		lo.Filter(queue, func(q QueueEntry, _ int) bool { return !q.HasVitals }),
		func(q QueueEntry) uuid.UUID { return q.PatientID },
	)
	return &NurseDashboard{
		Date:           date,
		Queue:          queue,
		AwaitingVitals: awaiting,
		StatusCounts:   statusCounts(entries),
	}, nil
}

// Admin summarises the period [from, to]. Zero dates default to the current
// month up to today.
func (s *Service) Admin(ctx context.Context, from, to scheduling.Date) (*AdminDashboard, error) {
	today := s.Today()
	if to.IsZero() {
		to = today
	}
	if from.IsZero() {
		from = scheduling.NewDate(to.Year(), to.Month(), 1)
	}
	if to.Before(from.Time) {
		return nil, fmt.Errorf("from must not be after to")
	}
	if to.Sub(from.Time) > MaxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("date range must be at most %d days", MaxRangeDays)
	}

	patients, err := s.repo.CountActivePatients(ctx)
	if err != nil {
		return nil, s.storageErr("count patients", err)
	}
	staff, err := s.repo.StaffByRole(ctx)
	if err != nil {
		return nil, s.storageErr("staff by role", err)
	}
	byStatus, err := s.repo.AppointmentsByStatus(ctx, from, to)
	if err != nil {
		return nil, s.storageErr("appointments by status", err)
	}
	top, err := s.repo.TopConsultationTypes(ctx, from, to, topTypesLimit)
	if err != nil {
		return nil, s.storageErr("top consultation types", err)
	}
	return &AdminDashboard{
		From:                 from,
		To:                   to,
		ActivePatients:       patients,
		StaffByRole:          staff,
		AppointmentsByStatus: byStatus,
		TopConsultationTypes: lo.Ternary(top == nil, []TypeCount{}, top),
	}, nil
}
