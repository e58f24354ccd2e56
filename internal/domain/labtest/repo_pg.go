package labtest

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

// NewRepoPG returns a postgres-backed lab test repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const labTestCols = `id, prescription_id, encounter_id, template_code, test_name, test_group, department,
	patient_id, patient_name, patient_sex, patient_age, company,
	practitioner_id, practitioner_name, service_unit,
	status, finalization, invoiced, result_date, created_at, updated_at`

func scanLabTest(row pgx.Row) (*LabTest, error) {
	var t LabTest
	err := row.Scan(&t.ID, &t.PrescriptionID, &t.EncounterID, &t.TemplateCode, &t.TestName,
		&t.TestGroup, &t.Department,
		&t.PatientID, &t.PatientName, &t.PatientSex, &t.PatientAge, &t.Company,
		&t.PractitionerID, &t.PractitionerName, &t.ServiceUnit,
		&t.Status, &t.Finalization, &t.Invoiced, &t.ResultDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, lt *LabTest) error {
	if lt.ID == uuid.Nil {
		lt.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_test (id, prescription_id, encounter_id, template_code, test_name,
			test_group, department, patient_id, patient_name, patient_sex, patient_age, company,
			practitioner_id, practitioner_name, service_unit, status, finalization, invoiced)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		lt.ID, lt.PrescriptionID, lt.EncounterID, lt.TemplateCode, lt.TestName,
		lt.TestGroup, lt.Department, lt.PatientID, lt.PatientName, lt.PatientSex, lt.PatientAge,
		lt.Company, lt.PractitionerID, lt.PractitionerName, lt.ServiceUnit,
		lt.Status, lt.Finalization, lt.Invoiced)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return scanLabTest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+labTestCols+` FROM lab_test WHERE id = $1`, id))
}

func (r *repoPG) GetByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*LabTest, error) {
	return scanLabTest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+labTestCols+` FROM lab_test
		WHERE prescription_id = $1
		ORDER BY created_at DESC LIMIT 1`, prescriptionID))
}

func (r *repoPG) Update(ctx context.Context, lt *LabTest) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test
		SET template_code = $2, test_name = $3, test_group = $4, department = $5,
			service_unit = $6, status = $7, finalization = $8, invoiced = $9,
			result_date = $10, updated_at = now()
		WHERE id = $1`,
		lt.ID, lt.TemplateCode, lt.TestName, lt.TestGroup, lt.Department,
		lt.ServiceUnit, lt.Status, lt.Finalization, lt.Invoiced, lt.ResultDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE lab_test SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Submit(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test SET finalization = $2, updated_at = now()
		WHERE id = $1 AND finalization = $3`, id, FinalizationSubmitted, FinalizationDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	// Result rows go with the test via ON DELETE CASCADE.
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM lab_test WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ReplaceResults(ctx context.Context, id uuid.UUID, normal []NormalResult, descriptive []DescriptiveResult) error {
	c := r.conn(ctx)
	if _, err := c.Exec(ctx,
		`DELETE FROM lab_test_normal_result WHERE lab_test_id = $1`, id); err != nil {
		return err
	}
	if _, err := c.Exec(ctx,
		`DELETE FROM lab_test_descriptive_result WHERE lab_test_id = $1`, id); err != nil {
		return err
	}
	for _, nr := range normal {
		if _, err := c.Exec(ctx, `
			INSERT INTO lab_test_normal_result (lab_test_id, test_name, result_value, test_uom, normal_range, idx)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			id, nr.TestName, nr.ResultValue, nr.TestUOM, nr.NormalRange, nr.Idx); err != nil {
			return err
		}
	}
	for _, dr := range descriptive {
		if _, err := c.Exec(ctx, `
			INSERT INTO lab_test_descriptive_result (lab_test_id, test_particulars, result_value, idx)
			VALUES ($1,$2,$3,$4)`,
			id, dr.TestParticulars, dr.ResultValue, dr.Idx); err != nil {
			return err
		}
	}
	tag, err := c.Exec(ctx,
		`UPDATE lab_test SET result_date = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) HasResults(ctx context.Context, id uuid.UUID) (bool, error) {
	var has bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM lab_test_normal_result
			WHERE lab_test_id = $1 AND result_value IS NOT NULL AND result_value <> ''
		) OR EXISTS (
			SELECT 1 FROM lab_test_descriptive_result
			WHERE lab_test_id = $1 AND result_value IS NOT NULL AND result_value <> ''
		)`, id).Scan(&has)
	return has, err
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabTest, int, error) {
	c := r.conn(ctx)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT count(*) FROM lab_test WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT `+labTestCols+` FROM lab_test
		WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []*LabTest
	for rows.Next() {
		t, err := scanLabTest(rows)
		if err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}
