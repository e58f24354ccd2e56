package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Encounter is a patient visit during which lab tests may be prescribed.
type Encounter struct {
	ID                uuid.UUID
	PatientID         uuid.UUID
	PatientName       string
	PatientSex        string
	PatientAge        *string
	Company           string
	AppointmentID     *uuid.UUID
	PractitionerID    uuid.UUID
	PractitionerName  string
	MedicalDepartment *string
	EncounterDate     time.Time
	Submitted         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PrescriptionLine is one lab test prescribed on an encounter. Lines keep
// a stable ID across saves so edits can be told apart from removals, and
// carry a back-reference to the work order created for them.
type PrescriptionLine struct {
	ID           uuid.UUID
	EncounterID  uuid.UUID
	TemplateCode string
	TestName     string
	Comment      *string
	Invoiced     bool
	LabTestID    *uuid.UUID
	Idx          int
}
