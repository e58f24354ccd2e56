package labtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RUPHAsoft/healthcare/internal/domain/encounter"
	"github.com/RUPHAsoft/healthcare/internal/domain/template"
	"github.com/RUPHAsoft/healthcare/internal/validation"
)

// serviceType tags billing lines that belong to lab tests.
const serviceType = "lab_test"

// Synchronizer brings lab test work orders in line with an encounter's
// prescription lines. Saving the same lines twice changes nothing, a
// line whose template changed gets its old order rejected and a fresh
// one created, and a rejected order is replaced on the next save.
type Synchronizer struct {
	repo      Repository
	templates template.Repository
	appts     encounter.AppointmentRepository
	backref   LineBackref
	charges   ChargeRemover
	logger    zerolog.Logger
}

func NewSynchronizer(repo Repository, templates template.Repository,
	appts encounter.AppointmentRepository, backref LineBackref, charges ChargeRemover,
	logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{repo: repo, templates: templates, appts: appts,
		backref: backref, charges: charges, logger: logger}
}

// Reconcile is called after each encounter save with the full current
// line set. Touching a line whose order has been submitted fails the
// whole save with a conflict, even when nothing about the line changed.
func (s *Synchronizer) Reconcile(ctx context.Context, enc *encounter.Encounter,
	lines []*encounter.PrescriptionLine) error {

	for _, line := range lines {
		lt, err := orderForLine(ctx, s.repo, line)
		if err != nil {
			return err
		}

		if lt == nil {
			if err := s.createForLine(ctx, enc, line); err != nil {
				return err
			}
			continue
		}
		if lt.Submitted() {
			return &validation.ConflictError{Resource: "lab_test", ID: lt.ID.String(),
				Msg: "lab test already completed and invoiced"}
		}
		if lt.TemplateCode == line.TemplateCode {
			if lt.Status == StatusRejected {
				// The rejected order stays on file; the line gets a new one.
				if err := s.createForLine(ctx, enc, line); err != nil {
					return err
				}
				continue
			}
			if line.LabTestID == nil {
				// The order was found by lookup; restore the reference.
				line.LabTestID = &lt.ID
				if err := s.backref.SetLineLabTest(ctx, line.ID, &lt.ID); err != nil {
					return err
				}
			}
			continue
		}
		// The line was retargeted: reject the old order, retract its
		// charges and order the new test. The rejected order keeps its
		// ID and stays on file as history.
		if lt.Status != StatusRejected {
			if err := s.repo.UpdateStatus(ctx, lt.ID, StatusRejected); err != nil {
				return err
			}
			if err := s.charges.RemoveServiceLines(ctx, serviceType, lt.ID); err != nil {
				return err
			}
			s.logger.Info().Str("lab_test_id", lt.ID.String()).
				Str("old_template", lt.TemplateCode).
				Str("new_template", line.TemplateCode).Msg("lab test rejected")
		}
		if err := s.createForLine(ctx, enc, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) createForLine(ctx context.Context, enc *encounter.Encounter,
	line *encounter.PrescriptionLine) error {

	tpl, err := s.templates.GetByCode(ctx, line.TemplateCode)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return &validation.ValidationError{Field: "template_code",
				Msg: fmt.Sprintf("lab test template %s does not exist", line.TemplateCode)}
		}
		return err
	}
	if tpl.Disabled {
		return &validation.ValidationError{Field: "template_code",
			Msg: fmt.Sprintf("lab test template %s is disabled", tpl.Code)}
	}

	var serviceUnit *string
	if enc.AppointmentID != nil {
		unit, err := s.appts.GetServiceUnit(ctx, *enc.AppointmentID)
		if err != nil {
			return err
		}
		if unit != "" {
			serviceUnit = &unit
		}
	}

	lt := &LabTest{
		ID:               uuid.New(),
		PrescriptionID:   &line.ID,
		EncounterID:      &enc.ID,
		TemplateCode:     tpl.Code,
		TestName:         tpl.Name,
		TestGroup:        tpl.Department,
		Department:       enc.MedicalDepartment,
		PatientID:        enc.PatientID,
		PatientName:      enc.PatientName,
		PatientSex:       enc.PatientSex,
		PatientAge:       enc.PatientAge,
		Company:          enc.Company,
		PractitionerID:   &enc.PractitionerID,
		PractitionerName: &enc.PractitionerName,
		ServiceUnit:      serviceUnit,
		Status:           StatusDraft,
		Finalization:     FinalizationDraft,
		Invoiced:         line.Invoiced,
	}
	if err := s.repo.Create(ctx, lt); err != nil {
		return err
	}
	line.LabTestID = &lt.ID
	if err := s.backref.SetLineLabTest(ctx, line.ID, &lt.ID); err != nil {
		return err
	}
	s.logger.Info().Str("lab_test_id", lt.ID.String()).
		Str("template_code", lt.TemplateCode).
		Str("encounter_id", enc.ID.String()).Msg("lab test created")
	return nil
}

// orderForLine resolves the work order of a prescription line, through
// the line's explicit back-reference when present, else by the order
// that points back at the line. A missing order resolves to nil.
func orderForLine(ctx context.Context, repo Repository, line *encounter.PrescriptionLine) (*LabTest, error) {
	var (
		lt  *LabTest
		err error
	)
	if line.LabTestID != nil {
		lt, err = repo.GetByID(ctx, *line.LabTestID)
	} else {
		lt, err = repo.GetByPrescription(ctx, line.ID)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lt, nil
}

// Guard protects finished lab work from being discarded through
// prescription edits. It both vetoes unsafe removals and performs the
// cleanup for safe ones.
type Guard struct {
	repo       Repository
	charges    ChargeRemover
	membership LineMembership
	backref    LineBackref
	logger     zerolog.Logger
}

func NewGuard(repo Repository, charges ChargeRemover, membership LineMembership,
	backref LineBackref, logger zerolog.Logger) *Guard {
	return &Guard{repo: repo, charges: charges, membership: membership,
		backref: backref, logger: logger}
}

// ValidateRemoval vetoes removal of any line whose lab test has recorded
// results or has been submitted. Lines whose tests are gone pass.
func (g *Guard) ValidateRemoval(ctx context.Context, removed []*encounter.PrescriptionLine) error {
	for _, line := range removed {
		lt, err := orderForLine(ctx, g.repo, line)
		if err != nil {
			return err
		}
		if lt == nil {
			continue
		}
		hasResults, err := g.repo.HasResults(ctx, lt.ID)
		if err != nil {
			return err
		}
		if hasResults {
			return &validation.IntegrityGuardError{Resource: "lab_test", ID: lt.ID.String(),
				Msg: fmt.Sprintf("results already recorded for %s", lt.TestName)}
		}
		if lt.Submitted() {
			return &validation.ConflictError{Resource: "lab_test", ID: lt.ID.String(),
				Msg: fmt.Sprintf("%s has been submitted and cannot be withdrawn", lt.TestName)}
		}
	}
	return nil
}

// RemoveFor discards the work orders of removed lines that passed the
// guard. Completed or submitted orders are left alone.
func (g *Guard) RemoveFor(ctx context.Context, removed []*encounter.PrescriptionLine) error {
	for _, line := range removed {
		lt, err := orderForLine(ctx, g.repo, line)
		if err != nil {
			return err
		}
		if lt == nil {
			continue
		}
		if err := g.discard(ctx, lt.ID); err != nil {
			return err
		}
	}
	return nil
}

// Remove discards the lab test of one prescription line on explicit
// request. Unknown lines and already finished tests are no-ops.
func (g *Guard) Remove(ctx context.Context, encounterID, lineID uuid.UUID) error {
	belongs, err := g.membership.LineBelongsTo(ctx, encounterID, lineID)
	if err != nil {
		return err
	}
	if !belongs {
		return nil
	}
	lt, err := g.repo.GetByPrescription(ctx, lineID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if lt.Status == StatusCompleted || lt.Submitted() {
		return nil
	}
	if err := g.charges.RemoveServiceLines(ctx, serviceType, lt.ID); err != nil {
		return err
	}
	if err := g.repo.Delete(ctx, lt.ID); err != nil {
		return err
	}
	if err := g.backref.SetLineLabTest(ctx, lineID, nil); err != nil {
		return err
	}
	g.logger.Info().Str("lab_test_id", lt.ID.String()).Msg("lab test removed")
	return nil
}

func (g *Guard) discard(ctx context.Context, labTestID uuid.UUID) error {
	lt, err := g.repo.GetByID(ctx, labTestID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if lt.Status == StatusCompleted || lt.Submitted() {
		return nil
	}
	if err := g.charges.RemoveServiceLines(ctx, serviceType, lt.ID); err != nil {
		return err
	}
	if err := g.repo.Delete(ctx, lt.ID); err != nil {
		return err
	}
	g.logger.Info().Str("lab_test_id", lt.ID.String()).Msg("lab test discarded")
	return nil
}

// Service exposes lab test reads and status transitions.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabTest, int, error) {
	return s.repo.ListForPatient(ctx, patientID, limit, offset)
}

// SetStatus moves a test through its workflow. Submitted tests only
// accept cancellation of their status, never reopening to draft.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	switch status {
	case StatusDraft, StatusCompleted, StatusApproved, StatusRejected, StatusCancelled:
	default:
		return &validation.ValidationError{Field: "status",
			Msg: fmt.Sprintf("unknown status %q", status)}
	}
	lt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if lt.Submitted() && status == StatusDraft {
		return &validation.ConflictError{Resource: "lab_test", ID: id.String(),
			Msg: "a submitted lab test cannot go back to draft"}
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// RecordResults replaces the test's result rows with the submitted
// grid. A submitted test is part of the permanent record and refuses
// new results.
func (s *Service) RecordResults(ctx context.Context, id uuid.UUID,
	normal []NormalResult, descriptive []DescriptiveResult) error {

	lt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if lt.Submitted() {
		return &validation.ConflictError{Resource: "lab_test", ID: id.String(),
			Msg: "results of a submitted lab test cannot be changed"}
	}
	return s.repo.ReplaceResults(ctx, id, normal, descriptive)
}

// Submit finalizes a test, making it part of the permanent record.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) error {
	lt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if lt.Submitted() {
		return nil
	}
	return s.repo.Submit(ctx, id)
}
