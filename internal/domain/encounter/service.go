package encounter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RUPHAsoft/healthcare/internal/platform/db"
	"github.com/RUPHAsoft/healthcare/internal/validation"
)

// Service owns the encounter save flow. Prescription edits, the removal
// guard and work order reconciliation run inside one transaction so a
// vetoed removal leaves the encounter untouched.
type Service struct {
	repo   Repository
	tx     db.TxRunner
	recon  Reconciler
	guard  RemovalValidator
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, recon Reconciler, guard RemovalValidator,
	logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, recon: recon, guard: guard, logger: logger}
}

func (s *Service) Create(ctx context.Context, enc *Encounter) error {
	if enc.PatientID == uuid.Nil {
		return &validation.ValidationError{Field: "patient_id", Msg: "patient is required"}
	}
	if enc.PractitionerID == uuid.Nil {
		return &validation.ValidationError{Field: "practitioner_id", Msg: "practitioner is required"}
	}
	if enc.EncounterDate.IsZero() {
		enc.EncounterDate = time.Now()
	}
	return s.repo.Create(ctx, enc)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) GetPrescriptions(ctx context.Context, encounterID uuid.UUID) ([]*PrescriptionLine, error) {
	if _, err := s.repo.GetByID(ctx, encounterID); err != nil {
		return nil, err
	}
	return s.repo.GetPrescriptions(ctx, encounterID)
}

// SavePrescriptions replaces the encounter's prescription lines with the
// submitted set and reconciles lab test work orders against the result.
// Lines present before the save but absent from the submitted set count
// as removals and must pass the removal guard first.
func (s *Service) SavePrescriptions(ctx context.Context, encounterID uuid.UUID,
	lines []*PrescriptionLine) ([]*PrescriptionLine, error) {

	var saved []*PrescriptionLine
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		enc, err := s.repo.GetByID(ctx, encounterID)
		if err != nil {
			return err
		}
		before, err := s.repo.GetPrescriptions(ctx, encounterID)
		if err != nil {
			return err
		}

		removed := removedLines(before, lines)
		if err := s.guard.ValidateRemoval(ctx, removed); err != nil {
			return err
		}
		if err := s.repo.ReplacePrescriptions(ctx, encounterID, lines); err != nil {
			return err
		}
		if err := s.guard.RemoveFor(ctx, removed); err != nil {
			return err
		}

		saved, err = s.repo.GetPrescriptions(ctx, encounterID)
		if err != nil {
			return err
		}
		return s.recon.Reconcile(ctx, enc, saved)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("encounter_id", encounterID.String()).
		Int("lines", len(saved)).Msg("prescriptions saved")
	return saved, nil
}

// removedLines returns the lines of before whose IDs are absent from
// after. A line whose template changed keeps its ID and so does not
// count as a removal.
func removedLines(before, after []*PrescriptionLine) []*PrescriptionLine {
	kept := make(map[uuid.UUID]bool, len(after))
	for _, l := range after {
		if l.ID != uuid.Nil {
			kept[l.ID] = true
		}
	}
	var removed []*PrescriptionLine
	for _, l := range before {
		if !kept[l.ID] {
			removed = append(removed, l)
		}
	}
	return removed
}
