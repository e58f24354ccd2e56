package labtest

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lab test does not exist.
var ErrNotFound = errors.New("lab test not found")

// Repository persists lab tests and their result rows.
type Repository interface {
	Create(ctx context.Context, lt *LabTest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	GetByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*LabTest, error)
	Update(ctx context.Context, lt *LabTest) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Submit(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ReplaceResults swaps the test's result rows wholesale and stamps
	// the result date, mirroring how the result entry form submits the
	// full grid.
	ReplaceResults(ctx context.Context, id uuid.UUID, normal []NormalResult, descriptive []DescriptiveResult) error

	// HasResults reports whether any result row, normal or descriptive,
	// has a recorded value for the test.
	HasResults(ctx context.Context, id uuid.UUID) (bool, error)

	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabTest, int, error)
}

// ChargeRemover drops the billing lines of a discarded work order.
// Implemented by the billing package and wired in at startup.
type ChargeRemover interface {
	RemoveServiceLines(ctx context.Context, serviceType string, serviceID uuid.UUID) error
}

// LineBackref records the lab test created for a prescription line.
// Satisfied by the encounter repository.
type LineBackref interface {
	SetLineLabTest(ctx context.Context, lineID uuid.UUID, labTestID *uuid.UUID) error
}

// LineMembership checks that a prescription line belongs to an
// encounter. Satisfied by the encounter repository.
type LineMembership interface {
	LineBelongsTo(ctx context.Context, encounterID, lineID uuid.UUID) (bool, error)
}
