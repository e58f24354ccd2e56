package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an invoice does not exist.
var ErrNotFound = errors.New("invoice not found")

// Repository persists invoices and their line items.
type Repository interface {
	Create(ctx context.Context, inv *Invoice, items []*LineItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error)

	// FindDraftInvoicesForService returns draft invoices carrying a line
	// for the given clinical record.
	FindDraftInvoicesForService(ctx context.Context, serviceType string, serviceID uuid.UUID) ([]*Invoice, error)

	// DeleteServiceLines removes the record's lines from one invoice and
	// returns how many were dropped.
	DeleteServiceLines(ctx context.Context, invoiceID uuid.UUID, serviceType string, serviceID uuid.UUID) (int, error)

	// Retotal recomputes the invoice total from its remaining lines.
	Retotal(ctx context.Context, invoiceID uuid.UUID) error

	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
}
