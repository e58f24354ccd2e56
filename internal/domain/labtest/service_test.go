package labtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RUPHAsoft/healthcare/internal/domain/encounter"
	"github.com/RUPHAsoft/healthcare/internal/domain/template"
	"github.com/RUPHAsoft/healthcare/internal/validation"
)

// -- Mock Repositories --

type mockLabTestRepo struct {
	tests       map[uuid.UUID]*LabTest
	normal      map[uuid.UUID][]NormalResult
	descriptive map[uuid.UUID][]DescriptiveResult
}

func newMockLabTestRepo() *mockLabTestRepo {
	return &mockLabTestRepo{
		tests:       make(map[uuid.UUID]*LabTest),
		normal:      make(map[uuid.UUID][]NormalResult),
		descriptive: make(map[uuid.UUID][]DescriptiveResult),
	}
}

func (m *mockLabTestRepo) addResult(id uuid.UUID, name, value string) {
	m.normal[id] = append(m.normal[id], NormalResult{LabTestID: id, TestName: name, ResultValue: &value})
}

func (m *mockLabTestRepo) Create(_ context.Context, lt *LabTest) error {
	if lt.ID == uuid.Nil {
		lt.ID = uuid.New()
	}
	lt.CreatedAt = time.Now()
	cp := *lt
	m.tests[lt.ID] = &cp
	return nil
}

func (m *mockLabTestRepo) GetByID(_ context.Context, id uuid.UUID) (*LabTest, error) {
	lt, ok := m.tests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *lt
	return &cp, nil
}

func (m *mockLabTestRepo) GetByPrescription(_ context.Context, prescriptionID uuid.UUID) (*LabTest, error) {
	var latest *LabTest
	for _, lt := range m.tests {
		if lt.PrescriptionID == nil || *lt.PrescriptionID != prescriptionID {
			continue
		}
		if latest == nil || lt.CreatedAt.After(latest.CreatedAt) {
			latest = lt
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockLabTestRepo) Update(_ context.Context, lt *LabTest) error {
	if _, ok := m.tests[lt.ID]; !ok {
		return ErrNotFound
	}
	cp := *lt
	m.tests[lt.ID] = &cp
	return nil
}

func (m *mockLabTestRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	lt, ok := m.tests[id]
	if !ok {
		return ErrNotFound
	}
	lt.Status = status
	return nil
}

func (m *mockLabTestRepo) Submit(_ context.Context, id uuid.UUID) error {
	lt, ok := m.tests[id]
	if !ok {
		return ErrNotFound
	}
	lt.Finalization = FinalizationSubmitted
	return nil
}

func (m *mockLabTestRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.tests[id]; !ok {
		return ErrNotFound
	}
	delete(m.tests, id)
	return nil
}

func (m *mockLabTestRepo) ReplaceResults(_ context.Context, id uuid.UUID,
	normal []NormalResult, descriptive []DescriptiveResult) error {
	lt, ok := m.tests[id]
	if !ok {
		return ErrNotFound
	}
	m.normal[id] = normal
	m.descriptive[id] = descriptive
	now := time.Now()
	lt.ResultDate = &now
	return nil
}

func (m *mockLabTestRepo) HasResults(_ context.Context, id uuid.UUID) (bool, error) {
	for _, nr := range m.normal[id] {
		if nr.ResultValue != nil && *nr.ResultValue != "" {
			return true, nil
		}
	}
	for _, dr := range m.descriptive[id] {
		if dr.ResultValue != nil && *dr.ResultValue != "" {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLabTestRepo) ListForPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*LabTest, int, error) {
	var result []*LabTest
	for _, lt := range m.tests {
		if lt.PatientID == patientID {
			result = append(result, lt)
		}
	}
	return result, len(result), nil
}

type mockTemplateRepo struct {
	tpls map[string]*template.LabTestTemplate
}

func newMockTemplateRepo(codes ...string) *mockTemplateRepo {
	m := &mockTemplateRepo{tpls: make(map[string]*template.LabTestTemplate)}
	for _, code := range codes {
		m.tpls[code] = &template.LabTestTemplate{Code: code, Name: code + " Test", Kind: template.KindSingle}
	}
	return m
}

func (m *mockTemplateRepo) Create(_ context.Context, tpl *template.LabTestTemplate) error {
	m.tpls[tpl.Code] = tpl
	return nil
}

func (m *mockTemplateRepo) GetByCode(_ context.Context, code string) (*template.LabTestTemplate, error) {
	tpl, ok := m.tpls[code]
	if !ok {
		return nil, template.ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}

func (m *mockTemplateRepo) Exists(_ context.Context, code string) (bool, error) {
	_, ok := m.tpls[code]
	return ok, nil
}

func (m *mockTemplateRepo) Update(_ context.Context, tpl *template.LabTestTemplate) error {
	m.tpls[tpl.Code] = tpl
	return nil
}

func (m *mockTemplateRepo) SetItem(_ context.Context, code, itemCode string, rate float64) error {
	return nil
}

func (m *mockTemplateRepo) SetCodeFields(_ context.Context, code, newCode string, itemCode *string) error {
	return nil
}

func (m *mockTemplateRepo) Rename(_ context.Context, oldCode, newCode string) error { return nil }

func (m *mockTemplateRepo) DetachItem(_ context.Context, code string) error { return nil }

func (m *mockTemplateRepo) Delete(_ context.Context, code string) error { return nil }

func (m *mockTemplateRepo) List(_ context.Context, limit, offset int) ([]*template.LabTestTemplate, int, error) {
	return nil, 0, nil
}

type mockApptRepo struct {
	units map[uuid.UUID]string
}

func (m *mockApptRepo) GetServiceUnit(_ context.Context, appointmentID uuid.UUID) (string, error) {
	return m.units[appointmentID], nil
}

// mockLines stands in for the encounter repository's line operations.
type mockLines struct {
	byEncounter map[uuid.UUID]map[uuid.UUID]*encounter.PrescriptionLine
}

func newMockLines() *mockLines {
	return &mockLines{byEncounter: make(map[uuid.UUID]map[uuid.UUID]*encounter.PrescriptionLine)}
}

func (m *mockLines) add(line *encounter.PrescriptionLine) {
	if m.byEncounter[line.EncounterID] == nil {
		m.byEncounter[line.EncounterID] = make(map[uuid.UUID]*encounter.PrescriptionLine)
	}
	m.byEncounter[line.EncounterID][line.ID] = line
}

func (m *mockLines) SetLineLabTest(_ context.Context, lineID uuid.UUID, labTestID *uuid.UUID) error {
	for _, lines := range m.byEncounter {
		if l, ok := lines[lineID]; ok {
			l.LabTestID = labTestID
		}
	}
	return nil
}

func (m *mockLines) LineBelongsTo(_ context.Context, encounterID, lineID uuid.UUID) (bool, error) {
	_, ok := m.byEncounter[encounterID][lineID]
	return ok, nil
}

type mockChargeRemover struct {
	removed []uuid.UUID
}

func (m *mockChargeRemover) RemoveServiceLines(_ context.Context, _ string, serviceID uuid.UUID) error {
	m.removed = append(m.removed, serviceID)
	return nil
}

type fixture struct {
	sync    *Synchronizer
	guard   *Guard
	repo    *mockLabTestRepo
	tpls    *mockTemplateRepo
	lines   *mockLines
	charges *mockChargeRemover
	enc     *encounter.Encounter
}

func newFixture(templateCodes ...string) *fixture {
	repo := newMockLabTestRepo()
	tpls := newMockTemplateRepo(templateCodes...)
	lines := newMockLines()
	charges := &mockChargeRemover{}
	appts := &mockApptRepo{units: make(map[uuid.UUID]string)}
	age := "34"
	dept := "Pathology"
	enc := &encounter.Encounter{
		ID:               uuid.New(),
		PatientID:        uuid.New(),
		PatientName:      "Jane Doe",
		PatientSex:       "Female",
		PatientAge:       &age,
		Company:          "City Hospital",
		PractitionerID:   uuid.New(),
		PractitionerName: "Dr. Mensah",
		MedicalDepartment: &dept,
	}
	return &fixture{
		sync:    NewSynchronizer(repo, tpls, appts, lines, charges, zerolog.Nop()),
		guard:   NewGuard(repo, charges, lines, lines, zerolog.Nop()),
		repo:    repo,
		tpls:    tpls,
		lines:   lines,
		charges: charges,
		enc:     enc,
	}
}

func (f *fixture) newLine(templateCode string) *encounter.PrescriptionLine {
	line := &encounter.PrescriptionLine{
		ID:           uuid.New(),
		EncounterID:  f.enc.ID,
		TemplateCode: templateCode,
		TestName:     templateCode + " Test",
	}
	f.lines.add(line)
	return line
}

// -- Reconcile --

func TestReconcileCreatesLabTestForNewLine(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.LabTestID == nil {
		t.Fatal("line should reference its lab test")
	}
	lt := f.repo.tests[*line.LabTestID]
	if lt == nil {
		t.Fatal("lab test should exist")
	}
	if lt.Status != StatusDraft || lt.Finalization != FinalizationDraft {
		t.Errorf("new lab test should be a draft, got %s/%s", lt.Status, lt.Finalization)
	}
	if lt.PatientName != "Jane Doe" || lt.Company != "City Hospital" {
		t.Error("lab test should snapshot encounter demographics")
	}
	if lt.TestName != "CBC Test" {
		t.Errorf("test name should come from the template, got %q", lt.TestName)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstID := *line.LabTestID

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.repo.tests) != 1 {
		t.Errorf("expected one lab test after repeated save, got %d", len(f.repo.tests))
	}
	if *line.LabTestID != firstID {
		t.Error("line should keep pointing at the same lab test")
	}
}

func TestReconcileRecreatesAfterRejection(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rejectedID := *line.LabTestID
	f.repo.tests[rejectedID].Status = StatusRejected

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *line.LabTestID == rejectedID {
		t.Error("line should point at a fresh lab test")
	}
	if _, ok := f.repo.tests[rejectedID]; !ok {
		t.Error("rejected lab test should stay on file")
	}
	if len(f.repo.tests) != 2 {
		t.Errorf("expected rejected plus fresh test, got %d", len(f.repo.tests))
	}
}

func TestReconcileRejectsAndRecreatesOnTemplateChange(t *testing.T) {
	f := newFixture("CBC", "LFT")
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oldID := *line.LabTestID

	line.TemplateCode = "LFT"
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	old := f.repo.tests[oldID]
	if old == nil {
		t.Fatal("old order must stay on file")
	}
	if old.Status != StatusRejected {
		t.Errorf("old order should be rejected, got %q", old.Status)
	}
	if old.TemplateCode != "CBC" {
		t.Errorf("rejected order keeps its template, got %q", old.TemplateCode)
	}
	if *line.LabTestID == oldID {
		t.Fatal("line should point at a fresh order")
	}
	fresh := f.repo.tests[*line.LabTestID]
	if fresh.TemplateCode != "LFT" || fresh.Status != StatusDraft {
		t.Errorf("fresh order should be a draft for LFT, got %s/%s", fresh.TemplateCode, fresh.Status)
	}
	if len(f.charges.removed) != 1 || f.charges.removed[0] != oldID {
		t.Errorf("charges of the rejected order should be retracted, got %v", f.charges.removed)
	}
}

func TestReconcileConflictsOnSubmittedOrderEvenWhenUnchanged(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.tests[*line.LabTestID].Finalization = FinalizationSubmitted

	err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line})
	if !validation.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
	if f.repo.tests[*line.LabTestID].Status != StatusDraft {
		t.Error("submitted order must not be mutated")
	}
}

func TestReconcileConflictsOnTemplateChangeOfSubmittedOrder(t *testing.T) {
	f := newFixture("CBC", "LFT")
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.tests[*line.LabTestID].Finalization = FinalizationSubmitted

	line.TemplateCode = "LFT"
	err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line})
	if !validation.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
	if len(f.repo.tests) != 1 {
		t.Error("no new order may appear after a conflict")
	}
}

func TestReconcileRecreatesWhenLabTestWasDeleted(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	delete(f.repo.tests, *line.LabTestID)

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.repo.tests) != 1 {
		t.Errorf("expected a replacement lab test, got %d", len(f.repo.tests))
	}
}

func TestReconcileRejectsUnknownTemplate(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("XRAY")
	err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line})
	if !validation.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestReconcileRejectsDisabledTemplate(t *testing.T) {
	f := newFixture("CBC")
	f.tpls.tpls["CBC"].Disabled = true
	line := f.newLine("CBC")
	err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line})
	if !validation.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestReconcileResolvesServiceUnitFromAppointment(t *testing.T) {
	f := newFixture("CBC")
	apptID := uuid.New()
	f.enc.AppointmentID = &apptID
	appts := &mockApptRepo{units: map[uuid.UUID]string{apptID: "Lab Room 2"}}
	f.sync = NewSynchronizer(f.repo, f.tpls, appts, f.lines, f.charges, zerolog.Nop())
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lt := f.repo.tests[*line.LabTestID]
	if lt.ServiceUnit == nil || *lt.ServiceUnit != "Lab Room 2" {
		t.Error("lab test should carry the appointment's service unit")
	}
}

func TestReconcileFindsOrderByLineWhenBackrefMissing(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := *line.LabTestID
	// Strip the back-reference; the order still points at the line.
	line.LabTestID = nil

	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.repo.tests) != 1 {
		t.Errorf("lookup by line should prevent a duplicate order, got %d", len(f.repo.tests))
	}
	if line.LabTestID == nil || *line.LabTestID != id {
		t.Error("back-reference should be restored")
	}
}

// -- Removal guard --

func TestValidateRemovalBlocksTestWithResults(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.addResult(*line.LabTestID, "Hemoglobin", "13.5")

	err := f.guard.ValidateRemoval(context.Background(), []*encounter.PrescriptionLine{line})
	if !validation.IsGuard(err) {
		t.Errorf("expected integrity guard error, got %v", err)
	}
}

func TestValidateRemovalBlocksSubmittedTest(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.tests[*line.LabTestID].Finalization = FinalizationSubmitted

	err := f.guard.ValidateRemoval(context.Background(), []*encounter.PrescriptionLine{line})
	if !validation.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestValidateRemovalAllowsDraftWithoutResults(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.guard.ValidateRemoval(context.Background(), []*encounter.PrescriptionLine{line}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRemovalFindsOrderByLineWhenBackrefMissing(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.addResult(*line.LabTestID, "Hemoglobin", "13.5")
	line.LabTestID = nil

	err := f.guard.ValidateRemoval(context.Background(), []*encounter.PrescriptionLine{line})
	if !validation.IsGuard(err) {
		t.Errorf("order with results must be found without a back-reference, got %v", err)
	}
}

func TestValidateRemovalSkipsMissingLabTest(t *testing.T) {
	f := newFixture("CBC")
	gone := uuid.New()
	line := &encounter.PrescriptionLine{ID: uuid.New(), LabTestID: &gone}
	if err := f.guard.ValidateRemoval(context.Background(), []*encounter.PrescriptionLine{line}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRemoveForDiscardsDraftAndItsCharges(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := *line.LabTestID

	if err := f.guard.RemoveFor(context.Background(), []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.repo.tests[id]; ok {
		t.Error("draft lab test should be deleted")
	}
	if len(f.charges.removed) != 1 || f.charges.removed[0] != id {
		t.Errorf("charges should be removed for the discarded test, got %v", f.charges.removed)
	}
}

func TestRemoveForLeavesCompletedTestAlone(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.tests[*line.LabTestID].Status = StatusCompleted

	if err := f.guard.RemoveFor(context.Background(), []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.repo.tests[*line.LabTestID]; !ok {
		t.Error("completed lab test must survive")
	}
	if len(f.charges.removed) != 0 {
		t.Error("no charges should be removed for a kept test")
	}
}

func TestRemoveIsNoOpForForeignLine(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.guard.Remove(context.Background(), uuid.New(), line.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.repo.tests[*line.LabTestID]; !ok {
		t.Error("lab test must survive a foreign removal request")
	}
}

func TestRemoveDeletesDraftAndClearsBackref(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := *line.LabTestID

	if err := f.guard.Remove(context.Background(), f.enc.ID, line.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.repo.tests[id]; ok {
		t.Error("draft lab test should be deleted")
	}
	if line.LabTestID != nil {
		t.Error("line back-reference should be cleared")
	}
}

func TestRemoveIsNoOpForSubmittedTest(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.tests[*line.LabTestID].Finalization = FinalizationSubmitted

	if err := f.guard.Remove(context.Background(), f.enc.ID, line.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.repo.tests[*line.LabTestID]; !ok {
		t.Error("submitted lab test must survive")
	}
}

// -- Results --

func TestRecordResultsThenRemovalIsVetoed(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := NewService(f.repo)
	value := "13.5"
	err := svc.RecordResults(context.Background(), *line.LabTestID,
		[]NormalResult{{TestName: "Hemoglobin", ResultValue: &value}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.repo.tests[*line.LabTestID].ResultDate == nil {
		t.Error("recording results should stamp the result date")
	}

	err = f.guard.ValidateRemoval(context.Background(), []*encounter.PrescriptionLine{line})
	if !validation.IsGuard(err) {
		t.Errorf("expected integrity guard error after recording results, got %v", err)
	}
}

func TestRecordResultsOnSubmittedTestConflicts(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.tests[*line.LabTestID].Finalization = FinalizationSubmitted

	svc := NewService(f.repo)
	value := "13.5"
	err := svc.RecordResults(context.Background(), *line.LabTestID,
		[]NormalResult{{TestName: "Hemoglobin", ResultValue: &value}}, nil)
	if !validation.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
	if len(f.repo.normal[*line.LabTestID]) != 0 {
		t.Error("no result rows may be stored for a submitted test")
	}
}

// -- Status transitions --

func TestSetStatusRejectsSubmittedBackToDraft(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.tests[*line.LabTestID].Finalization = FinalizationSubmitted

	svc := NewService(f.repo)
	err := svc.SetStatus(context.Background(), *line.LabTestID, StatusDraft)
	if !validation.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture("CBC")
	svc := NewService(f.repo)
	err := svc.SetStatus(context.Background(), uuid.New(), "Bogus")
	if !validation.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newFixture("CBC")
	line := f.newLine("CBC")
	if err := f.sync.Reconcile(context.Background(), f.enc, []*encounter.PrescriptionLine{line}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := NewService(f.repo)
	id := *line.LabTestID
	if err := svc.Submit(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Submit(context.Background(), id); err != nil {
		t.Fatalf("second submit should be a no-op: %v", err)
	}
	if f.repo.tests[id].Finalization != FinalizationSubmitted {
		t.Error("lab test should be submitted")
	}
}
