package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barangay/bhc/internal/domain/scheduling"
	"github.com/barangay/bhc/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const dayQueueSQL = `
	SELECT a.id, a.patient_id, p.patient_number,
		p.first_name || ' ' || p.last_name,
		a.doctor_id,
		CASE WHEN s.role = 'doctor' THEN 'Dr. ' ELSE '' END || s.first_name || ' ' || s.last_name,
		a.appointment_time, a.consultation_type, a.status,
		EXISTS (
			SELECT 1 FROM vital_signs v
			WHERE v.patient_id = a.patient_id AND v.recorded_at >= $2 AND v.recorded_at < $3
		)
	FROM appointment a
	JOIN patient p ON p.id = a.patient_id
	JOIN staff s ON s.id = a.doctor_id
	WHERE a.appointment_date = $1 AND ($4::uuid IS NULL OR a.doctor_id = $4)
	ORDER BY a.appointment_time, p.last_name`

func (r *repoPG) DayQueue(ctx context.Context, date scheduling.Date, dayStart, dayEnd time.Time, doctorID *uuid.UUID) ([]QueueEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, dayQueueSQL, date, dayStart, dayEnd, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueueEntry
	for rows.Next() {
		var q QueueEntry
		if err := rows.Scan(&q.AppointmentID, &q.PatientID, &q.PatientNumber, &q.PatientName,
			&q.DoctorID, &q.DoctorName, &q.Time, &q.ConsultationType, &q.Status, &q.HasVitals); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repoPG) DraftAssessments(ctx context.Context, doctorID uuid.UUID, limit int) ([]PendingAssessment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.patient_id, p.first_name || ' ' || p.last_name, a.chief_complaint, a.created_at
		FROM assessment a
		JOIN patient p ON p.id = a.patient_id
		WHERE a.doctor_id = $1 AND a.status = 'draft'
		ORDER BY a.created_at
		LIMIT $2`, doctorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingAssessment
	for rows.Next() {
		var p PendingAssessment
		if err := rows.Scan(&p.ID, &p.PatientID, &p.PatientName, &p.ChiefComplaint, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) CountActivePatients(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE active`).Scan(&n)
	return n, err
}

func (r *repoPG) StaffByRole(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT role, COUNT(*) FROM staff WHERE active GROUP BY role`)
}

func (r *repoPG) AppointmentsByStatus(ctx context.Context, from, to scheduling.Date) (map[string]int, error) {
	return r.countBy(ctx, `SELECT status, COUNT(*) FROM appointment
		WHERE appointment_date BETWEEN $1 AND $2 GROUP BY status`, from, to)
}

func (r *repoPG) countBy(ctx context.Context, sql string, args ...interface{}) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (r *repoPG) TopConsultationTypes(ctx context.Context, from, to scheduling.Date, limit int) ([]TypeCount, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.consultation_type, COALESCE(t.name, a.consultation_type), COUNT(*) AS total
		FROM appointment a
		LEFT JOIN consultation_type t ON t.code = a.consultation_type
		WHERE a.appointment_date BETWEEN $1 AND $2 AND a.status <> 'Cancelled'
		GROUP BY a.consultation_type, t.name
		ORDER BY total DESC, a.consultation_type
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Code, &tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
