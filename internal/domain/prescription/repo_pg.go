package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/barangay/bhc/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
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

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const rxCols = `id, patient_id, doctor_id, appointment_id, assessment_id, diagnosis, notes, status,
	issued_at, dispensed_at, updated_at`

const itemCols = `id, line_no, medicine, strength, dosage, frequency, duration, quantity, instructions`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.AssessmentID, &p.Diagnosis,
		&p.Notes, &p.Status, &p.IssuedAt, &p.DispensedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	return pgx.BeginFunc(ctx, r.conn(ctx), func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO prescription (id, patient_id, doctor_id, appointment_id, assessment_id,
				diagnosis, notes, status, issued_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING updated_at`,
			p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.AssessmentID,
			p.Diagnosis, p.Notes, p.Status, p.IssuedAt,
		).Scan(&p.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range p.Items {
			it := &p.Items[i]
			it.ID = uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO prescription_item (id, prescription_id, line_no, medicine, strength, dosage,
					frequency, duration, quantity, instructions)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				it.ID, p.ID, it.LineNo, it.Medicine, it.Strength, it.Dosage,
				it.Frequency, it.Duration, it.Quantity, it.Instructions)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescription WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// attachItems loads the items of every prescription in one query.
func (r *repoPG) attachItems(ctx context.Context, list []*Prescription) error {
	if len(list) == 0 {
		return nil
	}
	byID := lo.KeyBy(list, func(p *Prescription) uuid.UUID { return p.ID })
	ids := lo.Map(list, func(p *Prescription, _ int) string { return p.ID.String() })

	rows, err := r.conn(ctx).Query(ctx, `SELECT prescription_id, `+itemCols+` FROM prescription_item
		WHERE prescription_id = ANY($1::uuid[]) ORDER BY prescription_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rxID uuid.UUID
		var it Item
		if err := rows.Scan(&rxID, &it.ID, &it.LineNo, &it.Medicine, &it.Strength, &it.Dosage,
			&it.Frequency, &it.Duration, &it.Quantity, &it.Instructions); err != nil {
			return err
		}
		if p, ok := byID[rxID]; ok {
			p.Items = append(p.Items, it)
		}
	}
	return rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, p *Prescription) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE prescription SET status = $2, dispensed_at = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Status, p.DispensedAt,
	).Scan(&p.UpdatedAt)
	return notFound(err)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	qb := db.NewSearchQuery("prescription", rxCols)
	qb.Eq("patient_id", patientID)
	qb.OrderBy("issued_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachItems(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
