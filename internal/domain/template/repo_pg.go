package template

import (
	"context"
	"errors"

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

// NewRepoPG returns a postgres-backed template repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const tplCols = `code, name, kind, department, description,
	is_billable, rate, link_existing_item, item_code, item_group,
	sample, sample_qty, secondary_uom, conversion_factor,
	change_in_item, disabled, created_at, updated_at`

func scanTemplate(row pgx.Row) (*LabTestTemplate, error) {
	var t LabTestTemplate
	err := row.Scan(&t.Code, &t.Name, &t.Kind, &t.Department, &t.Description,
		&t.IsBillable, &t.Rate, &t.LinkExistingItem, &t.ItemCode, &t.ItemGroup,
		&t.Sample, &t.SampleQty, &t.SecondaryUOM, &t.ConversionFactor,
		&t.ChangeInItem, &t.Disabled, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, tpl *LabTestTemplate) error {
	c := r.conn(ctx)
	_, err := c.Exec(ctx, `
		INSERT INTO lab_test_template (code, name, kind, department, description,
			is_billable, rate, link_existing_item, item_code, item_group,
			sample, sample_qty, secondary_uom, conversion_factor, change_in_item, disabled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		tpl.Code, tpl.Name, tpl.Kind, tpl.Department, tpl.Description,
		tpl.IsBillable, tpl.Rate, tpl.LinkExistingItem, tpl.ItemCode, tpl.ItemGroup,
		tpl.Sample, tpl.SampleQty, tpl.SecondaryUOM, tpl.ConversionFactor,
		tpl.ChangeInItem, tpl.Disabled)
	if err != nil {
		return err
	}
	return r.replaceLines(ctx, c, tpl)
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*LabTestTemplate, error) {
	c := r.conn(ctx)
	tpl, err := scanTemplate(c.QueryRow(ctx,
		`SELECT `+tplCols+` FROM lab_test_template WHERE code = $1`, code))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, c, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (r *repoPG) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lab_test_template WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *repoPG) Update(ctx context.Context, tpl *LabTestTemplate) error {
	c := r.conn(ctx)
	tag, err := c.Exec(ctx, `
		UPDATE lab_test_template
		SET name = $2, kind = $3, department = $4, description = $5,
			is_billable = $6, rate = $7, link_existing_item = $8, item_code = $9,
			item_group = $10, sample = $11, sample_qty = $12,
			secondary_uom = $13, conversion_factor = $14,
			change_in_item = $15, disabled = $16, updated_at = now()
		WHERE code = $1`,
		tpl.Code, tpl.Name, tpl.Kind, tpl.Department, tpl.Description,
		tpl.IsBillable, tpl.Rate, tpl.LinkExistingItem, tpl.ItemCode,
		tpl.ItemGroup, tpl.Sample, tpl.SampleQty, tpl.SecondaryUOM, tpl.ConversionFactor,
		tpl.ChangeInItem, tpl.Disabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return r.replaceLines(ctx, c, tpl)
}

func (r *repoPG) SetItem(ctx context.Context, code, itemCode string, rate float64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test_template
		SET item_code = $2, rate = $3, updated_at = now()
		WHERE code = $1`, code, itemCode, rate)
	return err
}

func (r *repoPG) SetCodeFields(ctx context.Context, code, newCode string, itemCode *string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test_template
		SET name = $2, item_code = $3, updated_at = now()
		WHERE code = $1`, code, newCode, itemCode)
	return err
}

func (r *repoPG) Rename(ctx context.Context, oldCode, newCode string) error {
	if oldCode == newCode {
		return nil
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test_template SET code = $2, updated_at = now() WHERE code = $1`,
		oldCode, newCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) DetachItem(ctx context.Context, code string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test_template SET item_code = NULL, updated_at = now() WHERE code = $1`, code)
	return err
}

func (r *repoPG) Delete(ctx context.Context, code string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM lab_test_template WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*LabTestTemplate, int, error) {
	c := r.conn(ctx)
	var total int
	if err := c.QueryRow(ctx, `SELECT count(*) FROM lab_test_template`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT `+tplCols+` FROM lab_test_template
		ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tpls []*LabTestTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		tpls = append(tpls, tpl)
	}
	return tpls, total, rows.Err()
}

// Child lines are replaced wholesale on every write, mirroring how the
// template editor submits the full document.
func (r *repoPG) replaceLines(ctx context.Context, c queryable, tpl *LabTestTemplate) error {
	if _, err := c.Exec(ctx,
		`DELETE FROM lab_test_template_subtest WHERE template_code = $1`, tpl.Code); err != nil {
		return err
	}
	if _, err := c.Exec(ctx,
		`DELETE FROM lab_test_template_group_line WHERE template_code = $1`, tpl.Code); err != nil {
		return err
	}
	for _, st := range tpl.SubTests {
		if _, err := c.Exec(ctx, `
			INSERT INTO lab_test_template_subtest
				(template_code, idx, test_name, test_uom, secondary_uom, conversion_factor)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			tpl.Code, st.Idx, st.TestName, st.TestUOM, st.SecondaryUOM, st.ConversionFactor); err != nil {
			return err
		}
	}
	for _, gl := range tpl.GroupLines {
		if _, err := c.Exec(ctx, `
			INSERT INTO lab_test_template_group_line
				(template_code, idx, template_or_new_line, line_template_code, test_name,
				 secondary_uom, conversion_factor)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			tpl.Code, gl.Idx, gl.TemplateOrNewLine, gl.TemplateCode, gl.TestName,
			gl.SecondaryUOM, gl.ConversionFactor); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadLines(ctx context.Context, c queryable, tpl *LabTestTemplate) error {
	rows, err := c.Query(ctx, `
		SELECT idx, test_name, test_uom, secondary_uom, conversion_factor
		FROM lab_test_template_subtest WHERE template_code = $1 ORDER BY idx`, tpl.Code)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var st SubTest
		if err := rows.Scan(&st.Idx, &st.TestName, &st.TestUOM, &st.SecondaryUOM, &st.ConversionFactor); err != nil {
			return err
		}
		tpl.SubTests = append(tpl.SubTests, st)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	glRows, err := c.Query(ctx, `
		SELECT idx, template_or_new_line, line_template_code, test_name, secondary_uom, conversion_factor
		FROM lab_test_template_group_line WHERE template_code = $1 ORDER BY idx`, tpl.Code)
	if err != nil {
		return err
	}
	defer glRows.Close()
	for glRows.Next() {
		var gl GroupLine
		if err := glRows.Scan(&gl.Idx, &gl.TemplateOrNewLine, &gl.TemplateCode, &gl.TestName,
			&gl.SecondaryUOM, &gl.ConversionFactor); err != nil {
			return err
		}
		tpl.GroupLines = append(tpl.GroupLines, gl)
	}
	return glRows.Err()
}
