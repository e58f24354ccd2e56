package billing

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

// NewRepoPG returns a postgres-backed billing repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invoiceCols = `id, patient_id, company, status, total, invoice_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.Company, &inv.Status, &inv.Total,
		&inv.InvoiceDate, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &inv, err
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice, items []*LineItem) error {
	c := r.conn(ctx)
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	total := 0.0
	for _, it := range items {
		it.Amount = it.Qty * it.Rate
		total += it.Amount
	}
	inv.Total = total
	if _, err := c.Exec(ctx, `
		INSERT INTO invoice (id, patient_id, company, status, total, invoice_date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		inv.ID, inv.PatientID, inv.Company, inv.Status, inv.Total, inv.InvoiceDate); err != nil {
		return err
	}
	for i, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.InvoiceID = inv.ID
		it.Idx = i + 1
		if _, err := c.Exec(ctx, `
			INSERT INTO invoice_line_item (id, invoice_id, item_code, description, qty, rate, amount,
				service_type, service_id, idx)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, it.InvoiceID, it.ItemCode, it.Description, it.Qty, it.Rate, it.Amount,
			it.ServiceType, it.ServiceID, it.Idx); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE id = $1`, id))
}

func (r *repoPG) GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, item_code, description, qty, rate, amount, service_type, service_id, idx
		FROM invoice_line_item WHERE invoice_id = $1 ORDER BY idx`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ItemCode, &it.Description,
			&it.Qty, &it.Rate, &it.Amount, &it.ServiceType, &it.ServiceID, &it.Idx); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) FindDraftInvoicesForService(ctx context.Context, serviceType string, serviceID uuid.UUID) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT i.id, i.patient_id, i.company, i.status, i.total, i.invoice_date,
			i.created_at, i.updated_at
		FROM invoice i
		JOIN invoice_line_item li ON li.invoice_id = i.id
		WHERE i.status = $1 AND li.service_type = $2 AND li.service_id = $3`,
		InvoiceDraft, serviceType, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *repoPG) DeleteServiceLines(ctx context.Context, invoiceID uuid.UUID, serviceType string, serviceID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM invoice_line_item
		WHERE invoice_id = $1 AND service_type = $2 AND service_id = $3`,
		invoiceID, serviceType, serviceID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) Retotal(ctx context.Context, invoiceID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice
		SET total = COALESCE((
			SELECT sum(amount) FROM invoice_line_item WHERE invoice_id = $1
		), 0), updated_at = now()
		WHERE id = $1`, invoiceID)
	return err
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	c := r.conn(ctx)
	var total int
	if err := c.QueryRow(ctx,
		`SELECT count(*) FROM invoice WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := c.Query(ctx, `
		SELECT `+invoiceCols+` FROM invoice
		WHERE patient_id = $1
		ORDER BY invoice_date DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}
