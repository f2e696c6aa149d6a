package assessment

import (
	"context"
	"errors"

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

// -- Vital Signs Repository --

type vitalsRepoPG struct {
	pool *pgxpool.Pool
}

func NewVitalsRepoPG(pool *pgxpool.Pool) VitalsRepository {
	return &vitalsRepoPG{pool: pool}
}

func (r *vitalsRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const vitalsCols = `id, patient_id, appointment_id, recorded_by, systolic, diastolic, temperature_c,
	pulse_rate, respiratory_rate, oxygen_saturation, weight_kg, height_cm, bmi, notes, recorded_at`

func scanVitals(row pgx.Row) (*VitalSigns, error) {
	var v VitalSigns
	err := row.Scan(&v.ID, &v.PatientID, &v.AppointmentID, &v.RecordedBy, &v.Systolic, &v.Diastolic,
		&v.TemperatureC, &v.PulseRate, &v.RespiratoryRate, &v.OxygenSaturation, &v.WeightKg,
		&v.HeightCm, &v.BMI, &v.Notes, &v.RecordedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *vitalsRepoPG) Create(ctx context.Context, v *VitalSigns) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vital_signs (id, patient_id, appointment_id, recorded_by, systolic, diastolic,
			temperature_c, pulse_rate, respiratory_rate, oxygen_saturation, weight_kg, height_cm,
			bmi, notes, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		v.ID, v.PatientID, v.AppointmentID, v.RecordedBy, v.Systolic, v.Diastolic,
		v.TemperatureC, v.PulseRate, v.RespiratoryRate, v.OxygenSaturation, v.WeightKg, v.HeightCm,
		v.BMI, v.Notes, v.RecordedAt)
	return err
}

func (r *vitalsRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalSigns, int, error) {
	qb := db.NewSearchQuery("vital_signs", vitalsCols)
	qb.Eq("patient_id", patientID)
	qb.OrderBy("recorded_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*VitalSigns
	for rows.Next() {
		v, err := scanVitals(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func (r *vitalsRepoPG) Latest(ctx context.Context, patientID uuid.UUID) (*VitalSigns, error) {
	return scanVitals(r.conn(ctx).QueryRow(ctx,
		`SELECT `+vitalsCols+` FROM vital_signs WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT 1`, patientID))
}

// -- Assessment Repository --

type assessmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAssessmentRepoPG(pool *pgxpool.Pool) AssessmentRepository {
	return &assessmentRepoPG{pool: pool}
}

func (r *assessmentRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const assessmentCols = `id, patient_id, appointment_id, doctor_id, chief_complaint, history, findings,
	diagnosis, plan, status, completed_at, created_at, updated_at`

func scanAssessment(row pgx.Row) (*Assessment, error) {
	var a Assessment
	err := row.Scan(&a.ID, &a.PatientID, &a.AppointmentID, &a.DoctorID, &a.ChiefComplaint, &a.History,
		&a.Findings, &a.Diagnosis, &a.Plan, &a.Status, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *assessmentRepoPG) Create(ctx context.Context, a *Assessment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO assessment (id, patient_id, appointment_id, doctor_id, chief_complaint, history,
			findings, diagnosis, plan, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.AppointmentID, a.DoctorID, a.ChiefComplaint, a.History,
		a.Findings, a.Diagnosis, a.Plan, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *assessmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	return scanAssessment(r.conn(ctx).QueryRow(ctx, `SELECT `+assessmentCols+` FROM assessment WHERE id = $1`, id))
}

func (r *assessmentRepoPG) Update(ctx context.Context, a *Assessment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE assessment SET chief_complaint=$2, history=$3, findings=$4, diagnosis=$5, plan=$6,
			status=$7, completed_at=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.ChiefComplaint, a.History, a.Findings, a.Diagnosis, a.Plan, a.Status, a.CompletedAt,
	).Scan(&a.UpdatedAt)
	return notFound(err)
}

func (r *assessmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Assessment, int, error) {
	qb := db.NewSearchQuery("assessment", assessmentCols)
	qb.Eq("patient_id", patientID)
	qb.OrderBy("created_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
