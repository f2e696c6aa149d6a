package identity

import (
	"context"
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

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, patient_number, first_name, middle_name, last_name, suffix,
	birth_date, sex, civil_status, contact_number, email,
	address_line, purok, barangay, municipality, province,
	philhealth_number, household_number, blood_type, allergies,
	emergency_contact_name, emergency_contact_number,
	active, created_at, updated_at`

// patientSortColumns are the sort keys accepted by patient listings.
var patientSortColumns = map[string]string{
	"name":           "last_name",
	"first_name":     "first_name",
	"patient_number": "patient_number",
	"birth_date":     "birth_date",
	"registered":     "created_at",
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PatientNumber, &p.FirstName, &p.MiddleName, &p.LastName, &p.Suffix,
		&p.BirthDate, &p.Sex, &p.CivilStatus, &p.ContactNumber, &p.Email,
		&p.AddressLine, &p.Purok, &p.Barangay, &p.Municipality, &p.Province,
		&p.PhilHealthNumber, &p.HouseholdNumber, &p.BloodType, &p.Allergies,
		&p.EmergencyContactName, &p.EmergencyContactNumber,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.PatientNumber == "" {
		var seq int64
		if err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('patient_number_seq')`).Scan(&seq); err != nil {
			return err
		}
		p.PatientNumber = FormatPatientNumber(time.Now().Year(), seq)
	}

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, patient_number, first_name, middle_name, last_name, suffix,
			birth_date, sex, civil_status, contact_number, email,
			address_line, purok, barangay, municipality, province,
			philhealth_number, household_number, blood_type, allergies,
			emergency_contact_name, emergency_contact_number, active
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,$11,
			$12,$13,$14,$15,$16,
			$17,$18,$19,$20,
			$21,$22,$23
		) RETURNING created_at, updated_at`,
		p.ID, p.PatientNumber, p.FirstName, p.MiddleName, p.LastName, p.Suffix,
		p.BirthDate, p.Sex, p.CivilStatus, p.ContactNumber, p.Email,
		p.AddressLine, p.Purok, p.Barangay, p.Municipality, p.Province,
		p.PhilHealthNumber, p.HouseholdNumber, p.BloodType, p.Allergies,
		p.EmergencyContactName, p.EmergencyContactNumber, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			first_name=$2, middle_name=$3, last_name=$4, suffix=$5,
			birth_date=$6, sex=$7, civil_status=$8, contact_number=$9, email=$10,
			address_line=$11, purok=$12, barangay=$13, municipality=$14, province=$15,
			philhealth_number=$16, household_number=$17, blood_type=$18, allergies=$19,
			emergency_contact_name=$20, emergency_contact_number=$21, updated_at=NOW()
		WHERE id = $1
		RETURNING patient_number, active, created_at, updated_at`,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.Suffix,
		p.BirthDate, p.Sex, p.CivilStatus, p.ContactNumber, p.Email,
		p.AddressLine, p.Purok, p.Barangay, p.Municipality, p.Province,
		p.PhilHealthNumber, p.HouseholdNumber, p.BloodType, p.Allergies,
		p.EmergencyContactName, p.EmergencyContactNumber,
	).Scan(&p.PatientNumber, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *patientRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	return affected(r.conn(ctx).Exec(ctx,
		`UPDATE patient SET active = FALSE, updated_at = NOW() WHERE id = $1`, id))
}

func (r *patientRepoPG) Search(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	qb := db.NewSearchQuery("patient", patientCols)
	if !f.IncludeInactive {
		qb.Add("active")
	}
	if f.Query != "" {
		qb.Contains(f.Query, "first_name", "last_name", "middle_name", "patient_number",
			"(first_name || ' ' || last_name)")
	}
	if f.Purok != "" {
		qb.Add(fmt.Sprintf("LOWER(purok) = LOWER($%d)", qb.Idx()), f.Purok)
	}
	if f.PhilHealth != "" {
		qb.Eq("philhealth_number", f.PhilHealth)
	}
	qb.ApplySort(f.Sort, "last_name, first_name", patientSortColumns)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// -- Staff Repository --

type staffRepoPG struct {
	pool *pgxpool.Pool
}

func NewStaffRepoPG(pool *pgxpool.Pool) StaffRepository {
	return &staffRepoPG{pool: pool}
}

func (r *staffRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const staffCols = `id, user_id, role, first_name, last_name, specialization, license_number,
	contact_number, email, active, created_at, updated_at`

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.UserID, &s.Role, &s.FirstName, &s.LastName, &s.Specialization,
		&s.LicenseNumber, &s.ContactNumber, &s.Email, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *staffRepoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff (id, user_id, role, first_name, last_name, specialization, license_number,
			contact_number, email, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		s.ID, s.UserID, s.Role, s.FirstName, s.LastName, s.Specialization, s.LicenseNumber,
		s.ContactNumber, s.Email, s.Active,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return translate(err)
}

func (r *staffRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE id = $1`, id))
}

func (r *staffRepoPG) GetByUserID(ctx context.Context, userID string) (*Staff, error) {
	return scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE user_id = $1`, userID))
}

func (r *staffRepoPG) Update(ctx context.Context, s *Staff) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE staff SET user_id=$2, role=$3, first_name=$4, last_name=$5, specialization=$6,
			license_number=$7, contact_number=$8, email=$9, active=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID, s.UserID, s.Role, s.FirstName, s.LastName, s.Specialization,
		s.LicenseNumber, s.ContactNumber, s.Email, s.Active,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return translate(err)
}

func (r *staffRepoPG) List(ctx context.Context, role string, activeOnly bool, limit, offset int) ([]*Staff, int, error) {
	qb := db.NewSearchQuery("staff", staffCols)
	if role != "" {
		qb.Eq("role", role)
	}
	if activeOnly {
		qb.Add("active")
	}
	qb.OrderBy("last_name, first_name")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(limit, offset), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
