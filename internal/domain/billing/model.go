package billing

import (
	"time"

	"github.com/google/uuid"
)

// Invoice finalization mirrors the lab test lifecycle: draft invoices
// can still be edited, submitted ones are part of the ledger.
const (
	InvoiceDraft     = "Draft"
	InvoiceSubmitted = "Submitted"
	InvoiceCancelled = "Cancelled"
)

type Invoice struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	Company      string
	Status       string
	Total        float64
	InvoiceDate  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LineItem is one charge on an invoice. Service lines point back at the
// clinical record they bill for through ServiceType and ServiceID.
type LineItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	ItemCode    string
	Description *string
	Qty         float64
	Rate        float64
	Amount      float64
	ServiceType *string
	ServiceID   *uuid.UUID
	Idx         int
}
