package labtest

import (
	"time"

	"github.com/google/uuid"
)

// Workflow status of a lab test. Rejected tests are kept for the record
// and a fresh test is created on the next encounter save.
const (
	StatusDraft     = "Draft"
	StatusCompleted = "Completed"
	StatusApproved  = "Approved"
	StatusRejected  = "Rejected"
	StatusCancelled = "Cancelled"
)

// Finalization state, independent of workflow status. A submitted test
// is part of the permanent record and can no longer be discarded.
const (
	FinalizationDraft     = "Draft"
	FinalizationSubmitted = "Submitted"
	FinalizationCancelled = "Cancelled"
)

// LabTest is the work order created for one prescription line. It
// snapshots patient and practitioner context at ordering time so the
// lab can work from the test alone.
type LabTest struct {
	ID             uuid.UUID
	PrescriptionID *uuid.UUID
	EncounterID    *uuid.UUID
	TemplateCode   string
	TestName       string
	TestGroup      *string
	Department     *string

	PatientID   uuid.UUID
	PatientName string
	PatientSex  string
	PatientAge  *string
	Company     string

	PractitionerID   *uuid.UUID
	PractitionerName *string
	ServiceUnit      *string

	Status       string
	Finalization string
	Invoiced     bool

	ResultDate *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Submitted reports whether the test is finalized.
func (t *LabTest) Submitted() bool {
	return t.Finalization == FinalizationSubmitted
}

// NormalResult is one quantitative result row.
type NormalResult struct {
	ID          uuid.UUID
	LabTestID   uuid.UUID
	TestName    string
	ResultValue *string
	TestUOM     *string
	NormalRange *string
	Idx         int
}

// DescriptiveResult is one free-text result row.
type DescriptiveResult struct {
	ID              uuid.UUID
	LabTestID       uuid.UUID
	TestParticulars string
	ResultValue     *string
	Idx             int
}
