package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barangay/bhc/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// foreignKey maps a violated patient or staff reference onto ErrUnknownParty.
func foreignKey(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrUnknownParty
	}
	return err
}

// =========== Availability Repository ===========

type availabilityRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

func (r *availabilityRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const availCols = `doctor_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday,
	start_time, end_time, is_available, updated_at`

func scanAvailability(row pgx.Row) (*DoctorAvailability, error) {
	var a DoctorAvailability
	err := row.Scan(&a.DoctorID, &a.Monday, &a.Tuesday, &a.Wednesday, &a.Thursday, &a.Friday,
		&a.Saturday, &a.Sunday, &a.StartTime, &a.EndTime, &a.IsAvailable, &a.UpdatedAt)
	if err != nil {
		return nil, foreignKey(notFound(err))
	}
	return &a, nil
}

func (r *availabilityRepoPG) Get(ctx context.Context, doctorID uuid.UUID) (*DoctorAvailability, error) {
	return scanAvailability(r.conn(ctx).QueryRow(ctx,
		`SELECT `+availCols+` FROM doctor_availability WHERE doctor_id = $1`, doctorID))
}

func (r *availabilityRepoPG) Upsert(ctx context.Context, a *DoctorAvailability) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_availability (doctor_id, monday, tuesday, wednesday, thursday, friday,
			saturday, sunday, start_time, end_time, is_available)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (doctor_id) DO UPDATE SET
			monday=EXCLUDED.monday, tuesday=EXCLUDED.tuesday, wednesday=EXCLUDED.wednesday,
			thursday=EXCLUDED.thursday, friday=EXCLUDED.friday, saturday=EXCLUDED.saturday,
			sunday=EXCLUDED.sunday, start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time,
			is_available=EXCLUDED.is_available, updated_at=NOW()
		RETURNING updated_at`,
		a.DoctorID, a.Monday, a.Tuesday, a.Wednesday, a.Thursday, a.Friday,
		a.Saturday, a.Sunday, a.StartTime, a.EndTime, a.IsAvailable)
	a.IsDefault = false
	return foreignKey(row.Scan(&a.UpdatedAt))
}

func (r *availabilityRepoPG) SetWeekend(ctx context.Context, doctorID uuid.UUID, saturday, sunday bool) (*DoctorAvailability, error) {
	return scanAvailability(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_availability (doctor_id, saturday, sunday)
		VALUES ($1, $2, $3)
		ON CONFLICT (doctor_id) DO UPDATE SET
			saturday=EXCLUDED.saturday, sunday=EXCLUDED.sunday, updated_at=NOW()
		RETURNING `+availCols, doctorID, saturday, sunday))
}

func (r *availabilityRepoPG) SetAllWeekends(ctx context.Context, saturday, sunday bool) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_availability (doctor_id, saturday, sunday)
		SELECT id, $1, $2 FROM staff WHERE role = 'doctor' AND active
		ON CONFLICT (doctor_id) DO UPDATE SET
			saturday=EXCLUDED.saturday, sunday=EXCLUDED.sunday, updated_at=NOW()`,
		saturday, sunday)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== Consultation Type Repository ===========

type consultationTypeRepoPG struct{ pool *pgxpool.Pool }

func NewConsultationTypeRepoPG(pool *pgxpool.Pool) ConsultationTypeRepository {
	return &consultationTypeRepoPG{pool: pool}
}

func (r *consultationTypeRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const ctCols = `code, name, duration_minutes, allowed_days, windows, active, updated_at`

func scanConsultationType(row pgx.Row) (*ConsultationType, error) {
	var ct ConsultationType
	var days []int16
	var windows []byte
	if err := row.Scan(&ct.Code, &ct.Name, &ct.DurationMinutes, &days, &windows, &ct.Active, &ct.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	for _, d := range days {
		ct.AllowedDays = append(ct.AllowedDays, time.Weekday(d))
	}
	if err := json.Unmarshal(windows, &ct.Windows); err != nil {
		return nil, fmt.Errorf("decode windows of %s: %w", ct.Code, err)
	}
	return &ct, nil
}

func (r *consultationTypeRepoPG) List(ctx context.Context, activeOnly bool) ([]*ConsultationType, error) {
	query := `SELECT ` + ctCols + ` FROM consultation_type`
	if activeOnly {
		query += ` WHERE active`
	}
	rows, err := r.conn(ctx).Query(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ConsultationType
	for rows.Next() {
		ct, err := scanConsultationType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ct)
	}
	return items, rows.Err()
}

func (r *consultationTypeRepoPG) Get(ctx context.Context, code string) (*ConsultationType, error) {
	return scanConsultationType(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ctCols+` FROM consultation_type WHERE code = $1`, code))
}

func (r *consultationTypeRepoPG) Upsert(ctx context.Context, ct *ConsultationType) error {
	days := make([]int16, len(ct.AllowedDays))
	for i, d := range ct.AllowedDays {
		days[i] = int16(d)
	}
	windows, err := json.Marshal(ct.Windows)
	if err != nil {
		return fmt.Errorf("encode windows: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultation_type (code, name, duration_minutes, allowed_days, windows, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (code) DO UPDATE SET
			name=EXCLUDED.name, duration_minutes=EXCLUDED.duration_minutes,
			allowed_days=EXCLUDED.allowed_days, windows=EXCLUDED.windows,
			active=EXCLUDED.active, updated_at=NOW()
		RETURNING updated_at`,
		ct.Code, ct.Name, ct.DurationMinutes, days, windows, ct.Active).Scan(&ct.UpdatedAt)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, patient_id, doctor_id, appointment_date, appointment_time, consultation_type,
	status, reason, notes, cancellation_reason, created_by, created_at, updated_at, completed_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.AppointmentTime,
		&a.ConsultationType, &a.Status, &a.Reason, &a.Notes, &a.CancellationReason, &a.CreatedBy,
		&a.CreatedAt, &a.UpdatedAt, &a.CompletedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return foreignKey(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, appointment_date, appointment_time,
			consultation_type, status, reason, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.AppointmentTime,
		a.ConsultationType, a.Status, a.Reason, a.Notes, a.CreatedBy).Scan(&a.CreatedAt, &a.UpdatedAt))
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET status=$2, cancellation_reason=$3, completed_at=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Status, a.CancellationReason, a.CompletedAt).Scan(&a.UpdatedAt)
	return notFound(err)
}

func (r *appointmentRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2
		ORDER BY appointment_time`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	qb := db.NewSearchQuery("appointment", apptCols)
	if f.PatientID != nil {
		qb.Eq("patient_id", *f.PatientID)
	}
	if f.DoctorID != nil {
		qb.Eq("doctor_id", *f.DoctorID)
	}
	if f.Date != nil {
		qb.Eq("appointment_date", *f.Date)
	}
	if f.From != nil {
		qb.Cmp("appointment_date", ">=", *f.From)
	}
	if f.To != nil {
		qb.Cmp("appointment_date", "<=", *f.To)
	}
	if f.Status != "" {
		qb.Eq("status", f.Status)
	}
	qb.OrderBy("appointment_date DESC, appointment_time")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectAppointments(rows)
	return items, total, err
}

// =========== Slot Hold Repository ===========

type slotHoldRepoPG struct{ pool *pgxpool.Pool }

func NewSlotHoldRepoPG(pool *pgxpool.Pool) SlotHoldRepository {
	return &slotHoldRepoPG{pool: pool}
}

func (r *slotHoldRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const holdCols = `id, doctor_id, slot_date, slot_time, consultation_type, held_by, expires_at, created_at`

func scanHold(row pgx.Row) (*ConsultationTimeSlot, error) {
	var h ConsultationTimeSlot
	err := row.Scan(&h.ID, &h.DoctorID, &h.SlotDate, &h.SlotTime, &h.ConsultationType,
		&h.HeldBy, &h.ExpiresAt, &h.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

func (r *slotHoldRepoPG) Create(ctx context.Context, h *ConsultationTimeSlot) error {
	h.ID = uuid.New()
	return foreignKey(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultation_time_slot (id, doctor_id, slot_date, slot_time, consultation_type, held_by, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		h.ID, h.DoctorID, h.SlotDate, h.SlotTime, h.ConsultationType, h.HeldBy, h.ExpiresAt).Scan(&h.CreatedAt))
}

func (r *slotHoldRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ConsultationTimeSlot, error) {
	return scanHold(r.conn(ctx).QueryRow(ctx, `SELECT `+holdCols+` FROM consultation_time_slot WHERE id = $1`, id))
}

func (r *slotHoldRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultation_time_slot WHERE id = $1`, id)
	return err
}

func (r *slotHoldRepoPG) ListActive(ctx context.Context, doctorID uuid.UUID, date Date, now time.Time) ([]*ConsultationTimeSlot, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+holdCols+` FROM consultation_time_slot
		WHERE doctor_id = $1 AND slot_date = $2 AND expires_at > $3
		ORDER BY slot_time`, doctorID, date, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ConsultationTimeSlot
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}

func (r *slotHoldRepoPG) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultation_time_slot WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
