package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-case-service/internal/domain"
	"github.com/spec-kit/repair-case-service/internal/events"
	"github.com/spec-kit/repair-case-service/internal/repository"
	"github.com/spec-kit/repair-case-service/internal/workflow"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

var (
	csActor     = workflow.Actor{ID: "0d1f6a3e-0000-4000-8000-000000000001", Role: domain.StaffRoleCS}
	techActor   = workflow.Actor{ID: "0d1f6a3e-0000-4000-8000-000000000002", Role: domain.StaffRoleTechnician}
	otherTech   = workflow.Actor{ID: "0d1f6a3e-0000-4000-8000-000000000003", Role: domain.StaffRoleTechnician}
	leaderActor = workflow.Actor{ID: "0d1f6a3e-0000-4000-8000-000000000004", Role: domain.StaffRoleLeader}
	inactiveID  = "0d1f6a3e-0000-4000-8000-000000000005"
	unknownID   = "0d1f6a3e-0000-4000-8000-0000000000ff"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

type failingCaseRepo struct {
	*repository.MemoryCaseRepository
	failUpdate bool
}

func (r *failingCaseRepo) Update(ctx context.Context, c *domain.Case) error {
	if r.failUpdate {
		return errors.New("connection reset")
	}
	return r.MemoryCaseRepository.Update(ctx, c)
}

type fixture struct {
	svc         *CaseService
	cases       *failingCaseRepo
	staff       *repository.MemoryStaffRepository
	attachments *repository.MemoryAttachmentRepository
	snapshots   *repository.MemoryCostSnapshotRepository
	dispatcher  *recordingDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cases:       &failingCaseRepo{MemoryCaseRepository: repository.NewMemoryCaseRepository()},
		staff:       repository.NewMemoryStaffRepository(),
		attachments: repository.NewMemoryAttachmentRepository(),
		snapshots:   repository.NewMemoryCostSnapshotRepository(),
		dispatcher:  &recordingDispatcher{},
	}
	ctx := context.Background()
	for _, s := range []domain.StaffMember{
		{ID: csActor.ID, Name: "Cass", Email: "cs@example.com", Role: domain.StaffRoleCS, Active: true},
		{ID: techActor.ID, Name: "Tess", Email: "tech@example.com", Role: domain.StaffRoleTechnician, Active: true},
		{ID: otherTech.ID, Name: "Theo", Email: "tech2@example.com", Role: domain.StaffRoleTechnician, Active: true},
		{ID: inactiveID, Name: "Olle", Email: "off@example.com", Role: domain.StaffRoleTechnician, Active: false},
		{ID: leaderActor.ID, Name: "Lee", Email: "lead@example.com", Role: domain.StaffRoleLeader, Active: true},
	} {
		staff := s
		require.NoError(t, f.staff.Create(ctx, &staff))
	}

	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc = NewCaseService(CaseDependencies{
		CaseRepo:       f.cases,
		StaffRepo:      f.staff,
		AttachmentRepo: f.attachments,
		SnapshotRepo:   f.snapshots,
		Dispatcher:     f.dispatcher,
		Engine:         workflow.NewEngineWithClock(func() time.Time { return fixed }),
	})
	return f
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

func (f *fixture) createAssigned(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	view, err := f.svc.Create(ctx, csActor, workflow.CreateInput{Title: "Broken heater", CustomerName: "Acme"})
	require.NoError(t, err)
	_, err = f.svc.SubmitStage(ctx, csActor, view.Case.ID, workflow.InputSubmission{
		Title:      "Broken heater",
		AssignedTo: strPtr(techActor.ID),
	})
	require.NoError(t, err)
	_, err = f.svc.SubmitStage(ctx, techActor, view.Case.ID, workflow.InvestigationSubmission{Findings: "Thermostat failure"})
	require.NoError(t, err)
	return view.Case.ID
}

func costPlan(value string) workflow.SolutionPlanSubmission {
	return workflow.SolutionPlanSubmission{
		Solution:        "Replace thermostat",
		CostRequired:    true,
		EstimatedCost:   amount(value),
		CostDescription: "parts and labour",
	}
}

func executed() workflow.ExecutionSubmission {
	rating := 5
	return workflow.ExecutionSubmission{
		ExecutionReport:   "Thermostat replaced",
		ChecklistComplete: true,
		SignatureKey:      "signatures/acme.png",
		ClientRating:      &rating,
	}
}

func TestCaseService_FullFlowWithoutCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, csActor, workflow.CreateInput{Title: "Broken heater"})
	require.NoError(t, err)
	assert.Regexp(t, `^CASE-[0-9A-F]{8}$`, view.Case.CaseNumber)
	assert.Equal(t, domain.StageInput, view.Case.CurrentStage)
	assert.Equal(t, domain.CaseStatusOpen, view.Case.Status)
	assert.Equal(t, []domain.Stage{domain.StageInput}, view.EditableStages)

	id := view.Case.ID
	view, err = f.svc.SubmitStage(ctx, csActor, id, workflow.InputSubmission{Title: "Broken heater", AssignedTo: strPtr(techActor.ID)})
	require.NoError(t, err)
	assert.Equal(t, domain.StageInvestigation, view.Case.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, view.Case.Status)

	_, err = f.svc.SubmitStage(ctx, techActor, id, workflow.InvestigationSubmission{Findings: "Thermostat failure"})
	require.NoError(t, err)
	view, err = f.svc.SubmitStage(ctx, techActor, id, workflow.SolutionPlanSubmission{Solution: "Reset thermostat"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecution, view.Case.CurrentStage)

	view, err = f.svc.SubmitStage(ctx, techActor, id, executed())
	require.NoError(t, err)
	assert.Equal(t, domain.StageClosing, view.Case.CurrentStage)
	assert.Equal(t, domain.CaseStatusCompleted, view.Case.Status)

	view, err = f.svc.SubmitStage(ctx, csActor, id, workflow.ClosingSubmission{ClosingNotes: "Customer satisfied"})
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusClosed, view.Case.Status)
	assert.NotNil(t, view.Case.ClosedAt)
	assert.Empty(t, view.EditableStages)

	stored, err := f.cases.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusClosed, stored.Status)

	assert.Contains(t, f.dispatcher.types(), events.EventCaseCreated)
	advanced := 0
	for _, typ := range f.dispatcher.types() {
		if typ == events.EventCaseStageAdvanced {
			advanced++
		}
	}
	assert.Equal(t, 4, advanced)
}

func TestCaseService_CreateRequiresCS(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), techActor, workflow.CreateInput{Title: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.Empty(t, f.dispatcher.types())
}

func TestCaseService_AssigneeMustBeActiveTechnician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, csActor, workflow.CreateInput{Title: "Broken heater"})
	require.NoError(t, err)

	for _, assignee := range []string{csActor.ID, inactiveID, unknownID, "nobody"} {
		_, err = f.svc.SubmitStage(ctx, csActor, view.Case.ID, workflow.InputSubmission{Title: "Broken heater", AssignedTo: strPtr(assignee)})
		require.Error(t, err, assignee)
		var domainErr *apperrors.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, apperrors.CodeValidationFailed, domainErr.Code)
		assert.Equal(t, "assigned_to", domainErr.Details["field"])
	}

	stored, err := f.cases.GetByID(ctx, view.Case.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageInput, stored.CurrentStage)
}

func TestCaseService_PermissionCheckedBeforeAssigneeLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, csActor, workflow.CreateInput{Title: "Broken heater"})
	require.NoError(t, err)

	_, err = f.svc.SubmitStage(ctx, techActor, view.Case.ID, workflow.InputSubmission{Title: "x", AssignedTo: strPtr("nobody")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestCaseService_CostApprovalStoresSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	view, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("1500"))
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusPending, view.Case.Status)
	assert.Equal(t, domain.ApprovalPending, view.Case.CostStatus)

	snapshot, ok, err := f.snapshots.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snapshot.EstimatedCost.Equal(decimal.RequireFromString("1500")))

	_, err = f.svc.ApproveCost(ctx, techActor, id)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	view, err = f.svc.ApproveCost(ctx, leaderActor, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecution, view.Case.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, view.Case.Status)
	assert.Equal(t, leaderActor.ID, *view.Case.CostApprovedBy)

	_, err = f.svc.ApproveCost(ctx, leaderActor, id)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestCaseService_NewCostEvidenceReopensApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	_, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("1500"))
	require.NoError(t, err)
	_, err = f.svc.ApproveCost(ctx, leaderActor, id)
	require.NoError(t, err)

	// unchanged resubmission keeps the approval
	view, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("1500"))
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, view.Case.CostStatus)
	assert.Equal(t, domain.CaseStatusInProgress, view.Case.Status)

	_, err = f.svc.AddAttachment(ctx, techActor, id, AttachmentInput{
		Stage:      domain.StageSolutionPlan,
		Type:       domain.AttachmentTypeCost,
		StorageKey: "cases/" + id + "/quote.pdf",
		FileName:   "quote.pdf",
	})
	require.NoError(t, err)

	view, err = f.svc.SubmitStage(ctx, techActor, id, costPlan("1500"))
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, view.Case.CostStatus)
	assert.Equal(t, domain.CaseStatusPending, view.Case.Status)
	assert.Equal(t, domain.StageExecution, view.Case.CurrentStage)

	view, err = f.svc.SubmitStage(ctx, techActor, id, executed())
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecution, view.Case.CurrentStage)

	view, err = f.svc.ApproveCost(ctx, leaderActor, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecution, view.Case.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, view.Case.Status)
}

func TestCaseService_MissingSnapshotFallsBackToRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	_, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("900"))
	require.NoError(t, err)
	_, err = f.svc.ApproveCost(ctx, leaderActor, id)
	require.NoError(t, err)
	require.NoError(t, f.snapshots.Delete(ctx, id))

	view, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("900"))
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, view.Case.CostStatus)

	view, err = f.svc.SubmitStage(ctx, techActor, id, costPlan("950"))
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, view.Case.CostStatus)
}

func TestCaseService_MissingSnapshotStillSeesNewCostAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	view, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("900"))
	require.NoError(t, err)
	assert.Equal(t, 0, view.Case.CostAttachmentCount)
	_, err = f.svc.RejectCost(ctx, leaderActor, id, "need a quote")
	require.NoError(t, err)
	require.NoError(t, f.snapshots.Delete(ctx, id))

	_, err = f.svc.AddAttachment(ctx, techActor, id, AttachmentInput{
		Stage:      domain.StageSolutionPlan,
		Type:       domain.AttachmentTypeCost,
		StorageKey: "cases/" + id + "/quote.pdf",
		FileName:   "quote.pdf",
	})
	require.NoError(t, err)

	view, err = f.svc.SubmitStage(ctx, techActor, id, costPlan("900"))
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, view.Case.CostStatus)
	assert.Equal(t, domain.CaseStatusPending, view.Case.Status)
	assert.Equal(t, 1, view.Case.CostAttachmentCount)

	stored, err := f.cases.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CostAttachmentCount)
}

func TestCaseService_RejectCostThenCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	_, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("5000"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, csActor, id)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	view, err := f.svc.RejectCost(ctx, leaderActor, id, "too expensive")
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusRejected, view.Case.Status)
	assert.Equal(t, "too expensive", view.Case.CostRejectionReason)
	assert.Equal(t, []domain.Stage{domain.StageSolutionPlan}, mustGet(t, f, techActor, id).EditableStages)

	f.dispatcher.reset()
	view, err = f.svc.Cancel(ctx, csActor, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusCancelled, view.Case.Status)
	assert.Equal(t, []events.EventType{events.EventCaseCancelled, events.EventCaseStatusChanged}, f.dispatcher.types())

	_, err = f.svc.SubmitStage(ctx, techActor, id, costPlan("4000"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestCaseService_FinalCostRoundAndRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	_, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("1000"))
	require.NoError(t, err)
	_, err = f.svc.ApproveCost(ctx, leaderActor, id)
	require.NoError(t, err)
	_, err = f.svc.SubmitStage(ctx, techActor, id, executed())
	require.NoError(t, err)

	view, err := f.svc.SubmitStage(ctx, csActor, id, workflow.ClosingSubmission{ClosingNotes: "Extra parts", FinalCost: amount("1200")})
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusPending, view.Case.Status)
	assert.Equal(t, domain.ApprovalPending, view.Case.FinalCostStatus)

	view, err = f.svc.RejectFinalCost(ctx, leaderActor, id, "justify the parts")
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusRejected, view.Case.Status)

	view, err = f.svc.SubmitStage(ctx, csActor, id, workflow.ClosingSubmission{ClosingNotes: "Back to estimate", FinalCost: amount("1000.004")})
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusClosed, view.Case.Status)

	view, err = f.svc.Redo(ctx, csActor, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSolutionPlan, view.Case.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, view.Case.Status)
	assert.Equal(t, 2, view.Case.AttemptNumber)
	assert.Nil(t, view.Case.ClosedAt)

	_, ok, err := f.snapshots.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	view, err = f.svc.SubmitStage(ctx, techActor, id, costPlan("1000"))
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, view.Case.CostStatus)
}

func TestCaseService_AdvanceUsesStoredStageData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, csActor, workflow.CreateInput{Title: "Broken heater"})
	require.NoError(t, err)

	_, err = f.svc.Advance(ctx, csActor, view.Case.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = f.svc.Advance(ctx, leaderActor, view.Case.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestCaseService_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), csActor, unknownID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.ApproveCost(context.Background(), leaderActor, unknownID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

// lookupRecorder fails the test if a malformed id ever reaches storage.
type lookupRecorder struct {
	*failingCaseRepo
	t *testing.T
}

func (r *lookupRecorder) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	r.t.Errorf("storage queried with %q", id)
	return r.failingCaseRepo.GetByID(ctx, id)
}

func TestCaseService_MalformedIDsAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	guarded := NewCaseService(CaseDependencies{
		CaseRepo:       &lookupRecorder{failingCaseRepo: f.cases, t: t},
		StaffRepo:      f.staff,
		AttachmentRepo: f.attachments,
		SnapshotRepo:   f.snapshots,
		Dispatcher:     f.dispatcher,
	})
	for _, bad := range []string{"abc", "1; drop table cases", id + "x"} {
		_, err := guarded.Get(ctx, csActor, bad)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), bad)
		_, err = guarded.Cancel(ctx, csActor, bad)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), bad)
	}

	err := f.svc.DeleteAttachment(ctx, techActor, id, "not-a-uuid")
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, apperrors.CodeNotFound, domainErr.Code)
	assert.Equal(t, "not-a-uuid", domainErr.Details["attachment_id"])
}

func TestCaseService_MalformedAssigneeIsValidationError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, csActor, workflow.CreateInput{Title: "Broken heater"})
	require.NoError(t, err)

	_, err = f.svc.SubmitStage(ctx, csActor, view.Case.ID, workflow.InputSubmission{Title: "Broken heater", AssignedTo: strPtr("abc")})
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, apperrors.CodeValidationFailed, domainErr.Code)
	assert.Equal(t, "assigned_to", domainErr.Details["field"])

	_, err = f.svc.List(ctx, csActor, CaseListFilter{AssignedTo: strPtr("abc")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestCaseService_StorageFailureSurfacesAsInternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)
	f.dispatcher.reset()

	f.cases.failUpdate = true
	_, err := f.svc.SubmitStage(ctx, techActor, id, workflow.SolutionPlanSubmission{Solution: "Reset"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	assert.Empty(t, f.dispatcher.types())

	f.cases.failUpdate = false
	stored, err := f.cases.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSolutionPlan, stored.CurrentStage)
}

func TestCaseService_ActionsReloadStoredRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	_, err := f.svc.SubmitStage(ctx, techActor, id, costPlan("700"))
	require.NoError(t, err)
	stale := mustGet(t, f, leaderActor, id)

	_, err = f.svc.RejectCost(ctx, leaderActor, id, "no")
	require.NoError(t, err)

	// a second decision from a stale screen is evaluated against the stored record
	assert.Equal(t, domain.CaseStatusPending, stale.Case.Status)
	_, err = f.svc.ApproveCost(ctx, leaderActor, id)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestCaseService_Attachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createAssigned(t)

	_, err := f.svc.AddAttachment(ctx, leaderActor, id, AttachmentInput{Stage: domain.StageSolutionPlan, StorageKey: "k", FileName: "f"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.AddAttachment(ctx, techActor, id, AttachmentInput{Stage: domain.StageSolutionPlan, Type: "PHOTO", StorageKey: "k", FileName: "f"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	att, err := f.svc.AddAttachment(ctx, techActor, id, AttachmentInput{Stage: domain.StageSolutionPlan, StorageKey: "k", FileName: "f"})
	require.NoError(t, err)
	assert.Equal(t, domain.AttachmentTypeGeneral, att.Type)
	assert.Equal(t, "application/octet-stream", att.MimeType)

	err = f.svc.DeleteAttachment(ctx, otherTech, id, att.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	require.NoError(t, f.svc.DeleteAttachment(ctx, techActor, id, att.ID))
	err = f.svc.DeleteAttachment(ctx, techActor, id, att.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCaseService_ListScopesTechnicians(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assigned := f.createAssigned(t)
	_, err := f.svc.Create(ctx, csActor, workflow.CreateInput{Title: "Unassigned"})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, csActor, CaseListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.List(ctx, techActor, CaseListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, assigned, mine[0].Case.ID)

	none, err := f.svc.List(ctx, otherTech, CaseListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	open, err := f.svc.List(ctx, csActor, CaseListFilter{Statuses: []domain.CaseStatus{domain.CaseStatusOpen}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Unassigned", open[0].Case.Title)
}

func mustGet(t *testing.T, f *fixture, actor workflow.Actor, id string) *CaseView {
	t.Helper()
	view, err := f.svc.Get(context.Background(), actor, id)
	require.NoError(t, err)
	return view
}
