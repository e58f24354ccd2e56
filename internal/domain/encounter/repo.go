package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an encounter does not exist.
var ErrNotFound = errors.New("encounter not found")

// Repository persists encounters and their prescription lines.
type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	GetPrescriptions(ctx context.Context, encounterID uuid.UUID) ([]*PrescriptionLine, error)

	// ReplacePrescriptions stores the submitted line set wholesale.
	// Lines with a zero ID are assigned one; existing IDs survive so
	// later saves can be diffed against them.
	ReplacePrescriptions(ctx context.Context, encounterID uuid.UUID, lines []*PrescriptionLine) error

	// SetLineLabTest records the work order created for a line.
	SetLineLabTest(ctx context.Context, lineID uuid.UUID, labTestID *uuid.UUID) error

	// LineBelongsTo reports whether the line is part of the encounter.
	LineBelongsTo(ctx context.Context, encounterID, lineID uuid.UUID) (bool, error)

	List(ctx context.Context, limit, offset int) ([]*Encounter, int, error)
}

// AppointmentRepository resolves appointment context for work orders.
type AppointmentRepository interface {
	GetServiceUnit(ctx context.Context, appointmentID uuid.UUID) (string, error)
}

// Reconciler brings lab test work orders in line with an encounter's
// prescription lines after a save. Implemented by the labtest package
// and wired in at startup.
type Reconciler interface {
	Reconcile(ctx context.Context, enc *Encounter, lines []*PrescriptionLine) error
}

// RemovalValidator vetoes prescription removals whose work orders must
// not be silently discarded, and cleans up the work orders of removals
// that pass.
type RemovalValidator interface {
	ValidateRemoval(ctx context.Context, removed []*PrescriptionLine) error
	RemoveFor(ctx context.Context, removed []*PrescriptionLine) error
}
