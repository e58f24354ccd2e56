package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RUPHAsoft/healthcare/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a postgres-backed encounter repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const encCols = `id, patient_id, patient_name, patient_sex, patient_age, company,
	appointment_id, practitioner_id, practitioner_name, medical_department,
	encounter_date, submitted, created_at, updated_at`

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.ID, &e.PatientID, &e.PatientName, &e.PatientSex, &e.PatientAge, &e.Company,
		&e.AppointmentID, &e.PractitionerID, &e.PractitionerName, &e.MedicalDepartment,
		&e.EncounterDate, &e.Submitted, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	if enc.ID == uuid.Nil {
		enc.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO encounter (id, patient_id, patient_name, patient_sex, patient_age, company,
			appointment_id, practitioner_id, practitioner_name, medical_department,
			encounter_date, submitted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		enc.ID, enc.PatientID, enc.PatientName, enc.PatientSex, enc.PatientAge, enc.Company,
		enc.AppointmentID, enc.PractitionerID, enc.PractitionerName, enc.MedicalDepartment,
		enc.EncounterDate, enc.Submitted)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return scanEncounter(r.conn(ctx).QueryRow(ctx,
		`SELECT `+encCols+` FROM encounter WHERE id = $1`, id))
}

func (r *repoPG) GetPrescriptions(ctx context.Context, encounterID uuid.UUID) ([]*PrescriptionLine, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, encounter_id, template_code, test_name, comment, invoiced, lab_test_id, idx
		FROM lab_prescription WHERE encounter_id = $1 ORDER BY idx`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*PrescriptionLine
	for rows.Next() {
		var l PrescriptionLine
		if err := rows.Scan(&l.ID, &l.EncounterID, &l.TemplateCode, &l.TestName,
			&l.Comment, &l.Invoiced, &l.LabTestID, &l.Idx); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

func (r *repoPG) ReplacePrescriptions(ctx context.Context, encounterID uuid.UUID, lines []*PrescriptionLine) error {
	c := r.conn(ctx)
	keep := make([]uuid.UUID, 0, len(lines))
	for i, l := range lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.EncounterID = encounterID
		l.Idx = i + 1
		keep = append(keep, l.ID)
	}
	if _, err := c.Exec(ctx, `
		DELETE FROM lab_prescription
		WHERE encounter_id = $1 AND NOT (id = ANY($2))`, encounterID, keep); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := c.Exec(ctx, `
			INSERT INTO lab_prescription (id, encounter_id, template_code, test_name, comment, invoiced, lab_test_id, idx)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET
				template_code = EXCLUDED.template_code,
				test_name = EXCLUDED.test_name,
				comment = EXCLUDED.comment,
				invoiced = EXCLUDED.invoiced,
				idx = EXCLUDED.idx`,
			l.ID, l.EncounterID, l.TemplateCode, l.TestName, l.Comment, l.Invoiced, l.LabTestID, l.Idx); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) SetLineLabTest(ctx context.Context, lineID uuid.UUID, labTestID *uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE lab_prescription SET lab_test_id = $2 WHERE id = $1`, lineID, labTestID)
	return err
}

func (r *repoPG) LineBelongsTo(ctx context.Context, encounterID, lineID uuid.UUID) (bool, error) {
	var belongs bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM lab_prescription WHERE id = $1 AND encounter_id = $2)`,
		lineID, encounterID).Scan(&belongs)
	return belongs, err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	c := r.conn(ctx)
	var total int
	if err := c.QueryRow(ctx, `SELECT count(*) FROM encounter`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT `+encCols+` FROM encounter
		ORDER BY encounter_date DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var encs []*Encounter
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, 0, err
		}
		encs = append(encs, e)
	}
	return encs, total, rows.Err()
}

type appointmentRepoPG struct{ pool *pgxpool.Pool }

// NewAppointmentRepoPG returns a postgres-backed appointment repository.
func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) GetServiceUnit(ctx context.Context, appointmentID uuid.UUID) (string, error) {
	var unit string
	q := queryable(r.pool)
	if tx := db.TxFromContext(ctx); tx != nil {
		q = tx
	}
	err := q.QueryRow(ctx,
		`SELECT COALESCE(service_unit, '') FROM appointment WHERE id = $1`, appointmentID).Scan(&unit)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return unit, err
}
