package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RUPHAsoft/healthcare/internal/validation"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice, items []*LineItem) error {
	if inv.PatientID == uuid.Nil {
		return &validation.ValidationError{Field: "patient_id", Msg: "patient is required"}
	}
	if len(items) == 0 {
		return &validation.ValidationError{Field: "items", Msg: "at least one line item is required"}
	}
	for i, it := range items {
		if it.ItemCode == "" {
			return &validation.ValidationError{Field: "item_code", Row: i + 1,
				Msg: "item code is required"}
		}
		if it.Qty <= 0 {
			return &validation.ValidationError{Field: "qty", Row: i + 1,
				Msg: "quantity must be positive"}
		}
	}
	if inv.Status == "" {
		inv.Status = InvoiceDraft
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = time.Now()
	}
	return s.repo.Create(ctx, inv, items)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error) {
	return s.repo.GetLineItems(ctx, invoiceID)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.ListForPatient(ctx, patientID, limit, offset)
}

// RemoveServiceLines drops the charges of a discarded clinical record
// from every draft invoice that carries them and recomputes those
// invoices' totals. Submitted invoices are never touched.
func (s *Service) RemoveServiceLines(ctx context.Context, serviceType string, serviceID uuid.UUID) error {
	invoices, err := s.repo.FindDraftInvoicesForService(ctx, serviceType, serviceID)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		n, err := s.repo.DeleteServiceLines(ctx, inv.ID, serviceType, serviceID)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if err := s.repo.Retotal(ctx, inv.ID); err != nil {
			return err
		}
		s.logger.Info().Str("invoice_id", inv.ID.String()).
			Str("service_id", serviceID.String()).
			Int("lines", n).Msg("service charges removed from draft invoice")
	}
	return nil
}
