package scheduling

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/barangay/bhc/internal/platform/db"
	"github.com/barangay/bhc/internal/platform/lock"
	"github.com/barangay/bhc/internal/platform/notification"
)

// ErrStorage is returned in place of database errors, which are logged.
var ErrStorage = errors.New("scheduling data is temporarily unavailable, please try again")

const (
	bookingLockTTL  = 15 * time.Second
	bookingLockWait = 3 * time.Second
)

// Recorder receives scheduling counters.
type Recorder interface {
	AppointmentBooked()
	AppointmentCancelled()
	AppointmentCompleted()
	BookingConflict()
	SlotLookup(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AppointmentBooked()    {}
func (nopRecorder) AppointmentCancelled() {}
func (nopRecorder) AppointmentCompleted() {}
func (nopRecorder) BookingConflict()      {}
func (nopRecorder) SlotLookup(string)     {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, notification.Event) error { return nil }

type Service struct {
	availability AvailabilityRepository
	types        ConsultationTypeRepository
	appointments AppointmentRepository
	holds        SlotHoldRepository

	locker    lock.Locker
	publisher notification.Publisher
	metrics   Recorder
	logger    zerolog.Logger
	holdTTL   time.Duration
	lockWait  time.Duration
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option               { return func(s *Service) { s.locker = l } }
func WithPublisher(p notification.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithRecorder(r Recorder) Option                { return func(s *Service) { s.metrics = r } }
func WithLogger(l zerolog.Logger) Option            { return func(s *Service) { s.logger = l } }
func WithHoldTTL(d time.Duration) Option            { return func(s *Service) { s.holdTTL = d } }

// WithLocation sets the clinic time zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func NewService(avail AvailabilityRepository, types ConsultationTypeRepository, appts AppointmentRepository, holds SlotHoldRepository, opts ...Option) *Service {
	s := &Service{
		availability: avail,
		types:        types,
		appointments: appts,
		holds:        holds,
		locker:       lock.NewLocalLocker(),
		publisher:    nopPublisher{},
		metrics:      nopRecorder{},
		logger:       zerolog.Nop(),
		holdTTL:      10 * time.Minute,
		lockWait:     bookingLockWait,
		loc:          time.UTC,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) storageErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownParty) {
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Msg("scheduling storage failure")
	return ErrStorage
}

func (s *Service) today() (Date, TimeOfDay) {
	now := s.now().In(s.loc)
	return DateOf(now), NewTimeOfDay(now.Hour(), now.Minute())
}

// -- Slot lookup --

// AvailableSlots lists the free slots for a doctor, date and consultation
// type. Business outcomes such as "not offered" or "fully booked" come back as
// an empty list with a message; only storage failures return an error.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date Date, typeCode string) (SlotResult, error) {
	result, err := s.findSlots(ctx, doctorID, date, typeCode, uuid.Nil)
	if err != nil {
		s.metrics.SlotLookup(OutcomeError)
		return result, err
	}
	s.metrics.SlotLookup(result.Outcome)
	return result, nil
}

func (s *Service) findSlots(ctx context.Context, doctorID uuid.UUID, date Date, typeCode string, skipHold uuid.UUID) (SlotResult, error) {
	empty := SlotResult{
		Date:             date.String(),
		DoctorID:         doctorID,
		ConsultationType: typeCode,
		DurationMinutes:  SlotDuration(typeCode),
		Slots:            []SlotView{},
	}

	today, nowTime := s.today()
	if date.Before(today.Time) {
		empty.Message = "Appointments cannot be made for past dates."
		empty.Outcome = OutcomeNotOffered
		return empty, nil
	}

	ct, err := s.types.Get(ctx, typeCode)
	if errors.Is(err, ErrNotFound) || (err == nil && !ct.Active) {
		empty.Message = fmt.Sprintf("Unknown consultation type %q.", typeCode)
		empty.Outcome = OutcomeUnknownType
		return empty, nil
	}
	if err != nil {
		return empty, s.storageErr("get consultation type", err)
	}

	doc, err := s.availability.Get(ctx, doctorID)
	if errors.Is(err, ErrNotFound) {
		doc = DefaultAvailability(doctorID)
	} else if err != nil {
		return empty, s.storageErr("get availability", err)
	}

	appts, err := s.appointments.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return empty, s.storageErr("list appointments", err)
	}
	holds, err := s.holds.ListActive(ctx, doctorID, date, s.now())
	if err != nil {
		return empty, s.storageErr("list holds", err)
	}
	durations, err := s.durations(ctx)
	if err != nil {
		return empty, err
	}

	busy := busyIntervals(appts, holds, durations, skipHold)
	if date.Equal(today.Time) {
		// Slots that have already started today are not bookable.
		busy = append(busy, Interval{Start: 0, End: nowTime.Add(1)})
	}
	result := FindAvailableSlots(doc, ct, date, busy)
	if result.Outcome == OutcomeFullyBooked && date.Equal(today.Time) {
		result.Message = "No more slots are open today."
	}
	return result, nil
}

// durations returns a lookup from type code to slot length, preferring the
// stored catalog over the built-in table.
func (s *Service) durations(ctx context.Context) (func(string) int, error) {
	types, err := s.types.List(ctx, false)
	if err != nil {
		return nil, s.storageErr("list consultation types", err)
	}
	byCode := lo.SliceToMap(types, func(ct *ConsultationType) (string, int) {
		return ct.Code, ct.DurationMinutes
	})
	return func(code string) int {
		if d, ok := byCode[code]; ok && d > 0 {
			return d
		}
		return SlotDuration(code)
	}, nil
}

func (s *Service) bookingLock(ctx context.Context, doctorID uuid.UUID, date Date) (func(), error) {
	key := lock.Key("booking", db.TenantFromContext(ctx), doctorID.String(), date.String())
	release, err := lock.AcquireWait(ctx, s.locker, key, bookingLockTTL, s.lockWait)
	if errors.Is(err, lock.ErrLocked) {
		return nil, ErrBookingBusy
	}
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("booking lock failure")
		return nil, ErrStorage
	}
	return release, nil
}

// -- Holds --

type HoldRequest struct {
	DoctorID         uuid.UUID
	Date             Date
	Time             TimeOfDay
	ConsultationType string
	HeldBy           string
}

// HoldSlot reserves a free slot for the configured hold TTL.
func (s *Service) HoldSlot(ctx context.Context, req HoldRequest) (*ConsultationTimeSlot, error) {
	if req.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("date is required")
	}
	if req.ConsultationType == "" {
		return nil, fmt.Errorf("consultation_type is required")
	}

	release, err := s.bookingLock(ctx, req.DoctorID, req.Date)
	if err != nil {
		return nil, err
	}
	defer release()

	if n, err := s.holds.DeleteExpired(ctx, s.now()); err != nil {
		s.logger.Warn().Err(err).Msg("purge expired holds")
	} else if n > 0 {
		s.logger.Debug().Int64("purged", n).Msg("expired holds removed")
	}

	result, err := s.findSlots(ctx, req.DoctorID, req.Date, req.ConsultationType, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if result.Outcome == OutcomeUnknownType {
		return nil, ErrUnknownType
	}
	if !result.Has(req.Time) {
		s.metrics.BookingConflict()
		return nil, ErrSlotUnavailable
	}

	h := &ConsultationTimeSlot{
		DoctorID:         req.DoctorID,
		SlotDate:         req.Date,
		SlotTime:         req.Time,
		ConsultationType: req.ConsultationType,
		HeldBy:           req.HeldBy,
		ExpiresAt:        s.now().Add(s.holdTTL),
	}
	if err := s.holds.Create(ctx, h); err != nil {
		return nil, s.storageErr("create hold", err)
	}
	return h, nil
}

// ReleaseHold deletes a hold placed by releasedBy. An empty releasedBy
// releases any hold.
func (s *Service) ReleaseHold(ctx context.Context, id uuid.UUID, releasedBy string) error {
	h, err := s.holds.GetByID(ctx, id)
	if err != nil {
		return s.storageErr("get hold", err)
	}
	if releasedBy != "" && h.HeldBy != releasedBy {
		return ErrHoldNotOwned
	}
	if err := s.holds.Delete(ctx, id); err != nil {
		return s.storageErr("delete hold", err)
	}
	return nil
}

// -- Appointment --

type BookingRequest struct {
	PatientID        uuid.UUID
	DoctorID         uuid.UUID
	Date             Date
	Time             TimeOfDay
	ConsultationType string
	// HoldID is the caller's own hold on this exact slot, if any. It does
	// not block the booking and is consumed by it.
	HoldID    uuid.UUID
	Reason    string
	Notes     string
	CreatedBy string
}

// BookAppointment creates a Draft appointment after checking, under the
// per doctor and date lock, that the requested time is still free.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("date is required")
	}
	if req.ConsultationType == "" {
		return nil, fmt.Errorf("consultation_type is required")
	}
	if today, _ := s.today(); req.Date.Before(today.Time) {
		return nil, fmt.Errorf("date must not be in the past")
	}

	release, err := s.bookingLock(ctx, req.DoctorID, req.Date)
	if err != nil {
		return nil, err
	}
	defer release()

	holdID, err := s.claimHold(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := s.findSlots(ctx, req.DoctorID, req.Date, req.ConsultationType, holdID)
	if err != nil {
		return nil, err
	}
	if result.Outcome == OutcomeUnknownType {
		return nil, ErrUnknownType
	}
	if !result.Has(req.Time) {
		s.metrics.BookingConflict()
		s.logger.Info().
			Str("doctor_id", req.DoctorID.String()).
			Str("date", req.Date.String()).
			Str("time", req.Time.String()).
			Msg("booking rejected, slot taken")
		return nil, ErrSlotUnavailable
	}

	a := &Appointment{
		PatientID:        req.PatientID,
		DoctorID:         req.DoctorID,
		AppointmentDate:  req.Date,
		AppointmentTime:  req.Time,
		ConsultationType: req.ConsultationType,
		Status:           StatusDraft,
		Reason:           optional(req.Reason),
		Notes:            optional(req.Notes),
		CreatedBy:        optional(req.CreatedBy),
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, s.storageErr("create appointment", err)
	}

	if holdID != uuid.Nil {
		if err := s.holds.Delete(ctx, holdID); err != nil {
			s.logger.Warn().Err(err).Str("hold_id", holdID.String()).Msg("release consumed hold")
		}
	}

	s.metrics.AppointmentBooked()
	s.publish(ctx, notification.AppointmentBooked, a)
	return a, nil
}

// claimHold checks req.HoldID against the booking and returns the id of a
// live hold to skip in the conflict check. A hold that has lapsed or been
// purged yields uuid.Nil and the booking is checked like any other.
func (s *Service) claimHold(ctx context.Context, req BookingRequest) (uuid.UUID, error) {
	if req.HoldID == uuid.Nil {
		return uuid.Nil, nil
	}
	h, err := s.holds.GetByID(ctx, req.HoldID)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, s.storageErr("get hold", err)
	}
	if !h.ExpiresAt.After(s.now()) {
		return uuid.Nil, nil
	}
	if h.HeldBy != req.CreatedBy {
		return uuid.Nil, ErrHoldNotOwned
	}
	if h.DoctorID != req.DoctorID || h.SlotDate.String() != req.Date.String() ||
		h.SlotTime != req.Time || h.ConsultationType != req.ConsultationType {
		return uuid.Nil, ErrHoldMismatch
	}
	return h.ID, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageErr("get appointment", err)
	}
	return a, nil
}

func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validAppointmentStatuses[f.Status] {
		return nil, 0, fmt.Errorf("invalid appointment status: %s", f.Status)
	}
	items, total, err := s.appointments.Search(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, s.storageErr("search appointments", err)
	}
	return items, total, nil
}

// ListDoctorDay returns every appointment of the doctor on date ordered by
// time, cancelled ones included.
func (s *Service) ListDoctorDay(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	items, err := s.appointments.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, s.storageErr("list doctor day", err)
	}
	return items, nil
}

// ConfirmAppointment moves a Draft appointment to Pending.
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, func(a *Appointment) error {
		if a.Status != StatusDraft {
			return fmt.Errorf("%w: only Draft appointments can be confirmed, this one is %s", ErrInvalidTransition, a.Status)
		}
		a.Status = StatusPending
		return nil
	}, notification.AppointmentStatusChanged)
}

// CancelAppointment cancels an appointment that is neither Cancelled nor
// Completed.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	a, err := s.transition(ctx, id, func(a *Appointment) error {
		if a.Status == StatusCancelled || a.Status == StatusCompleted {
			return fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, a.Status)
		}
		a.Status = StatusCancelled
		if reason != "" {
			a.CancellationReason = &reason
		}
		return nil
	}, notification.AppointmentCancelled)
	if err == nil {
		s.metrics.AppointmentCancelled()
	}
	return a, err
}

// CompleteAppointment marks an appointment Completed. Completing an
// already Completed appointment is a no-op.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) error {
	a, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == StatusCompleted {
		return nil
	}
	_, err = s.transition(ctx, id, func(a *Appointment) error {
		if a.Status == StatusCancelled {
			return fmt.Errorf("%w: a cancelled appointment cannot be completed", ErrInvalidTransition)
		}
		now := s.now()
		a.Status = StatusCompleted
		a.CompletedAt = &now
		return nil
	}, notification.AppointmentCompleted)
	if err == nil {
		s.metrics.AppointmentCompleted()
	}
	return err
}

// UpdateStatus sets any valid status. It is the front-desk override and does
// not enforce transitions.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status, reason string) (*Appointment, error) {
	if !validAppointmentStatuses[status] {
		return nil, fmt.Errorf("invalid appointment status: %s", status)
	}
	return s.transition(ctx, id, func(a *Appointment) error {
		a.Status = status
		switch status {
		case StatusCompleted:
			if a.CompletedAt == nil {
				now := s.now()
				a.CompletedAt = &now
			}
		case StatusCancelled:
			if reason != "" {
				a.CancellationReason = &reason
			}
		}
		return nil
	}, notification.AppointmentStatusChanged)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, apply func(*Appointment) error, event string) (*Appointment, error) {
	a, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status
	if err := apply(a); err != nil {
		return nil, err
	}
	if err := s.appointments.UpdateStatus(ctx, a); err != nil {
		return nil, s.storageErr("update appointment status", err)
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("from", from).
		Str("to", a.Status).
		Msg("appointment status changed")
	s.publish(ctx, event, a)
	return a, nil
}

func (s *Service) publish(ctx context.Context, eventType string, a *Appointment) {
	evt := notification.Event{
		Type:             eventType,
		TenantID:         db.TenantFromContext(ctx),
		AppointmentID:    a.ID.String(),
		PatientID:        a.PatientID.String(),
		DoctorID:         a.DoctorID.String(),
		Date:             a.AppointmentDate.String(),
		Time:             a.AppointmentTime.Display(),
		ConsultationType: a.ConsultationType,
		Status:           a.Status,
	}
	if a.CancellationReason != nil {
		evt.Reason = *a.CancellationReason
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", evt.AppointmentID).
			Msg("publish appointment event")
	}
}

// -- Doctor availability --

// GetAvailability returns the stored schedule or, when there is none, the
// default schedule with IsDefault set.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID) (*DoctorAvailability, error) {
	a, err := s.availability.Get(ctx, doctorID)
	if errors.Is(err, ErrNotFound) {
		return DefaultAvailability(doctorID), nil
	}
	if err != nil {
		return nil, s.storageErr("get availability", err)
	}
	return a, nil
}

func (s *Service) SetAvailability(ctx context.Context, a *DoctorAvailability) error {
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if a.StartTime < 0 || a.EndTime > minutesPerDay {
		return fmt.Errorf("clinic hours must be within the day")
	}
	if a.StartTime >= a.EndTime {
		return fmt.Errorf("start_time must be before end_time")
	}
	if err := s.availability.Upsert(ctx, a); err != nil {
		return s.storageErr("upsert availability", err)
	}
	return nil
}

// FixWeekend sets the Saturday and Sunday flags of one doctor.
func (s *Service) FixWeekend(ctx context.Context, doctorID uuid.UUID, saturday, sunday bool) (*DoctorAvailability, error) {
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	a, err := s.availability.SetWeekend(ctx, doctorID, saturday, sunday)
	if err != nil {
		return nil, s.storageErr("set weekend", err)
	}
	return a, nil
}

// FixAllWeekends applies the weekend flags to every active doctor.
func (s *Service) FixAllWeekends(ctx context.Context, saturday, sunday bool) (int64, error) {
	n, err := s.availability.SetAllWeekends(ctx, saturday, sunday)
	if err != nil {
		return 0, s.storageErr("set all weekends", err)
	}
	s.logger.Info().Int64("doctors", n).Bool("saturday", saturday).Bool("sunday", sunday).Msg("weekend availability updated")
	return n, nil
}

// -- Consultation types --

var typeCodePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,39}$`)

func (s *Service) ListConsultationTypes(ctx context.Context, activeOnly bool) ([]*ConsultationType, error) {
	items, err := s.types.List(ctx, activeOnly)
	if err != nil {
		return nil, s.storageErr("list consultation types", err)
	}
	return items, nil
}

func (s *Service) GetConsultationType(ctx context.Context, code string) (*ConsultationType, error) {
	ct, err := s.types.Get(ctx, code)
	if err != nil {
		return nil, s.storageErr("get consultation type", err)
	}
	return ct, nil
}

func (s *Service) UpsertConsultationType(ctx context.Context, ct *ConsultationType) error {
	if !typeCodePattern.MatchString(ct.Code) {
		return fmt.Errorf("code must be lowercase letters, digits or underscores")
	}
	if ct.Name == "" {
		return fmt.Errorf("name is required")
	}
	if ct.DurationMinutes <= 0 || ct.DurationMinutes > 240 {
		return fmt.Errorf("duration_minutes must be between 1 and 240")
	}
	if len(ct.AllowedDays) == 0 {
		return fmt.Errorf("allowed_days must not be empty")
	}
	for _, d := range ct.AllowedDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid weekday: %d", d)
		}
	}
	ct.AllowedDays = lo.Uniq(ct.AllowedDays)
	if len(ct.Windows) == 0 {
		return fmt.Errorf("windows must not be empty")
	}
	for _, w := range ct.Windows {
		if w.Start >= w.End || w.End > minutesPerDay {
			return fmt.Errorf("window %s-%s is empty or outside the day", w.Start, w.End)
		}
	}
	if err := s.types.Upsert(ctx, ct); err != nil {
		return s.storageErr("upsert consultation type", err)
	}
	return nil
}
