package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-case-service/internal/domain"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

var (
	csAgent    = Actor{ID: "cs-1", Role: domain.StaffRoleCS}
	technician = Actor{ID: "tech-1", Role: domain.StaffRoleTechnician}
	otherTech  = Actor{ID: "tech-2", Role: domain.StaffRoleTechnician}
	leader     = Actor{ID: "lead-1", Role: domain.StaffRoleLeader}
)

func testEngine() *Engine {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewEngineWithClock(func() time.Time { return fixed })
}

func amount(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func newCase(t *testing.T, e *Engine) domain.Case {
	t.Helper()
	c, err := e.Create(csAgent, CreateInput{Title: "Leaking pipe", CustomerName: "Dana"})
	require.NoError(t, err)
	c.ID = "case-1"
	return c
}

func submit(t *testing.T, e *Engine, c domain.Case, a Actor, sub Submission, last CostSnapshot) domain.Case {
	t.Helper()
	next, err := e.Submit(c, a, sub, last)
	require.NoError(t, err)
	return next
}

// caseAtStage3 drives a new case through stages 1 and 2.
func caseAtStage3(t *testing.T, e *Engine) domain.Case {
	t.Helper()
	c := newCase(t, e)
	c = submit(t, e, c, csAgent, InputSubmission{Title: c.Title, AssignedTo: strPtr(technician.ID)}, CostSnapshot{})
	c = submit(t, e, c, technician, InvestigationSubmission{Findings: "Corroded joint"}, CostSnapshot{})
	return c
}

func costedPlan(v string) SolutionPlanSubmission {
	return SolutionPlanSubmission{
		Solution:        "Replace joint",
		CostRequired:    true,
		EstimatedCost:   amount(v),
		CostDescription: "parts and labour",
	}
}

func execution() ExecutionSubmission {
	return ExecutionSubmission{
		ExecutionReport:   "Joint replaced",
		ChecklistComplete: true,
		SignatureKey:      "sig/case-1.png",
		ClientRating:      intPtr(5),
	}
}

// caseAtStage5 returns a completed case whose estimate of est was approved.
func caseAtStage5(t *testing.T, e *Engine, est string) domain.Case {
	t.Helper()
	c := caseAtStage3(t, e)
	c = submit(t, e, c, technician, costedPlan(est), CostSnapshot{})
	c, err := e.ApproveCost(c, leader)
	require.NoError(t, err)
	c = submit(t, e, c, technician, execution(), CostSnapshotOf(c))
	require.Equal(t, domain.StageClosing, c.CurrentStage)
	require.Equal(t, domain.CaseStatusCompleted, c.Status)
	return c
}

func TestCreate(t *testing.T) {
	e := testEngine()
	c := newCase(t, e)
	assert.Equal(t, domain.StageInput, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusOpen, c.Status)
	assert.Equal(t, 1, c.AttemptNumber)

	_, err := e.Create(technician, CreateInput{Title: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = e.Create(csAgent, CreateInput{Title: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestStage1_AssignmentAdvancesToInvestigation(t *testing.T) {
	e := testEngine()
	c := newCase(t, e)
	c = submit(t, e, c, csAgent, InputSubmission{Title: "Leaking pipe", AssignedTo: strPtr("tech-1")}, CostSnapshot{})

	assert.Equal(t, domain.StageInvestigation, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, c.Status)
	require.NotNil(t, c.AssignedTo)
	assert.Equal(t, "tech-1", *c.AssignedTo)
}

func TestStage1_RequiresAssignmentAndKeepsIt(t *testing.T) {
	e := testEngine()
	c := newCase(t, e)

	_, err := e.Submit(c, csAgent, InputSubmission{Title: "Leaking pipe"}, CostSnapshot{})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidationFailed, de.Code)
	assert.Equal(t, "assigned_to", de.Details["field"])

	c = submit(t, e, c, csAgent, InputSubmission{Title: "Leaking pipe", AssignedTo: strPtr("tech-1")}, CostSnapshot{})
	_, err = e.Submit(c, csAgent, InputSubmission{Title: "Leaking pipe", AssignedTo: strPtr("tech-2")}, CostSnapshot{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestStage2_AdvancesKeepingStatus(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	assert.Equal(t, domain.StageSolutionPlan, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, c.Status)
}

func TestStage2_OnlyAssignedTechnician(t *testing.T) {
	e := testEngine()
	c := newCase(t, e)
	c = submit(t, e, c, csAgent, InputSubmission{Title: c.Title, AssignedTo: strPtr(technician.ID)}, CostSnapshot{})

	_, err := e.Submit(c, otherTech, InvestigationSubmission{Findings: "x"}, CostSnapshot{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = e.Submit(c, leader, InvestigationSubmission{Findings: "x"}, CostSnapshot{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestStage3_NoCostAdvances(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	c = submit(t, e, c, technician, SolutionPlanSubmission{Solution: "Tighten joint"}, CostSnapshot{})

	assert.Equal(t, domain.StageExecution, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, c.Status)
	assert.Equal(t, domain.ApprovalNone, c.CostStatus)
}

func TestStage3_CostRequiredWithoutAmountFailsValidation(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	_, err := e.Submit(c, technician, SolutionPlanSubmission{Solution: "Replace", CostRequired: true}, CostSnapshot{})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidationFailed, de.Code)
	assert.Equal(t, "estimated_cost", de.Details["field"])

	_, err = e.Submit(c, technician, costedPlan("-1"), CostSnapshot{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestStage3_CostApprovalAdvancesToExecution(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	c = submit(t, e, c, technician, costedPlan("1000"), CostSnapshot{})

	assert.Equal(t, domain.StageSolutionPlan, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusPending, c.Status)
	assert.Equal(t, domain.ApprovalPending, c.CostStatus)

	approved, err := e.ApproveCost(c, leader)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecution, approved.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, approved.Status)
	assert.Equal(t, domain.ApprovalApproved, approved.CostStatus)
	require.NotNil(t, approved.CostApprovedBy)
	assert.Equal(t, leader.ID, *approved.CostApprovedBy)
}

func TestStage3_RejectedEstimateReopensOnChange(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	c = submit(t, e, c, technician, costedPlan("1000"), CostSnapshot{})
	saved := CostSnapshotOf(c)

	c, err := e.RejectCost(c, leader, "too expensive")
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusRejected, c.Status)
	assert.Equal(t, domain.ApprovalRejected, c.CostStatus)
	assert.Equal(t, domain.StageSolutionPlan, c.CurrentStage)
	assert.Equal(t, "too expensive", c.CostRejectionReason)

	// identical re-save is not a resubmission
	same := submit(t, e, c, technician, costedPlan("1000"), saved)
	assert.Equal(t, domain.CaseStatusRejected, same.Status)
	assert.Equal(t, domain.ApprovalRejected, same.CostStatus)

	c = submit(t, e, c, technician, costedPlan("800"), saved)
	assert.Equal(t, domain.CaseStatusPending, c.Status)
	assert.Equal(t, domain.ApprovalPending, c.CostStatus)
	assert.Empty(t, c.CostRejectionReason)
}

func TestCostResubmission_AttachmentChangeCounts(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	first := costedPlan("1000")
	first.CostAttachmentCount = 1
	c = submit(t, e, c, technician, first, CostSnapshot{})
	assert.Equal(t, 1, c.CostAttachmentCount)
	saved := CostSnapshotOf(c)
	c, err := e.RejectCost(c, leader, "")
	require.NoError(t, err)

	plan := costedPlan("1000")
	plan.CostAttachmentCount = 2
	c = submit(t, e, c, technician, plan, saved)
	assert.Equal(t, domain.ApprovalPending, c.CostStatus)
}

func TestCostDecision_Preconditions(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)

	_, err := e.ApproveCost(c, leader)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	c = submit(t, e, c, technician, costedPlan("1000"), CostSnapshot{})
	_, err = e.ApproveCost(c, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = e.RejectCost(c, csAgent, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	rejected, err := e.RejectCost(c, leader, "")
	require.NoError(t, err)
	_, err = e.ApproveCost(rejected, leader)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestStage4_CompletesCase(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	c = submit(t, e, c, technician, SolutionPlanSubmission{Solution: "Tighten"}, CostSnapshot{})

	_, err := e.Submit(c, technician, ExecutionSubmission{ExecutionReport: "done", ChecklistComplete: true, SignatureKey: "s"}, CostSnapshot{})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "client_rating", de.Details["field"])

	c = submit(t, e, c, technician, execution(), CostSnapshot{})
	assert.Equal(t, domain.StageClosing, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusCompleted, c.Status)
}

func TestStage4_DoesNotAdvanceWhileRevisedCostPending(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	c = submit(t, e, c, technician, costedPlan("1000"), CostSnapshot{})
	c, err := e.ApproveCost(c, leader)
	require.NoError(t, err)

	c = submit(t, e, c, technician, costedPlan("1200"), CostSnapshotOf(c))
	assert.Equal(t, domain.StageExecution, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusPending, c.Status)

	c = submit(t, e, c, technician, execution(), CostSnapshotOf(c))
	assert.Equal(t, domain.StageExecution, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusPending, c.Status)

	c, err = e.ApproveCost(c, leader)
	require.NoError(t, err)
	assert.Equal(t, domain.StageExecution, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, c.Status)
}

func TestStage5_EqualFinalCostClosesDirectly(t *testing.T) {
	e := testEngine()
	c := caseAtStage5(t, e, "1000")
	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("1000.00")}, CostSnapshot{})

	assert.Equal(t, domain.CaseStatusClosed, c.Status)
	assert.Equal(t, domain.ApprovalNone, c.FinalCostStatus)
	assert.NotNil(t, c.ClosedAt)
}

func TestStage5_DifferingFinalCostNeedsApproval(t *testing.T) {
	e := testEngine()
	c := caseAtStage5(t, e, "1000")
	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("950")}, CostSnapshot{})
	assert.Equal(t, domain.CaseStatusPending, c.Status)
	assert.Equal(t, domain.ApprovalPending, c.FinalCostStatus)

	c, err := e.ApproveFinalCost(c, leader)
	require.NoError(t, err)
	assert.Equal(t, domain.StageClosing, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusCompleted, c.Status)
	require.NotNil(t, c.FinalCostApprovedBy)

	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("950")}, CostSnapshot{})
	assert.Equal(t, domain.CaseStatusClosed, c.Status)
	assert.Equal(t, domain.ApprovalApproved, c.FinalCostStatus)
	assert.True(t, c.FinalCost.Equal(decimal.RequireFromString("950")))
}

func TestFinalCost_RejectThenResubmit(t *testing.T) {
	e := testEngine()
	c := caseAtStage5(t, e, "1000")
	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("1300")}, CostSnapshot{})

	c, err := e.RejectFinalCost(c, leader, "check invoice")
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusRejected, c.Status)
	assert.Equal(t, domain.ApprovalRejected, c.FinalCostStatus)
	assert.True(t, CanEdit(domain.StageClosing, csAgent, c))

	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("1000")}, CostSnapshot{})
	assert.Equal(t, domain.CaseStatusClosed, c.Status)
}

func TestFinalCost_WithinToleranceNeedsNoApproval(t *testing.T) {
	assert.False(t, FinalCostDiffers(decimal.RequireFromString("1000.009"), decimal.RequireFromString("1000")))
	assert.True(t, FinalCostDiffers(decimal.RequireFromString("1000.01"), decimal.RequireFromString("1000")))
	assert.True(t, FinalCostDiffers(decimal.RequireFromString("999.99"), decimal.RequireFromString("1000")))
}

func TestFinalCost_NotEngagedWithoutEstimate(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	c = submit(t, e, c, technician, SolutionPlanSubmission{Solution: "Tighten"}, CostSnapshot{})
	c = submit(t, e, c, technician, execution(), CostSnapshot{})

	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("75")}, CostSnapshot{})
	assert.Equal(t, domain.CaseStatusClosed, c.Status)
	assert.Equal(t, domain.ApprovalNone, c.FinalCostStatus)
}

func TestRedo_IncrementsAttemptOncePerRedo(t *testing.T) {
	e := testEngine()
	c := caseAtStage5(t, e, "1000")
	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("1000")}, CostSnapshot{})
	require.Equal(t, domain.CaseStatusClosed, c.Status)

	c, err := e.Redo(c, csAgent)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSolutionPlan, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, c.Status)
	assert.Equal(t, 2, c.AttemptNumber)
	assert.True(t, c.CostRequired)
	assert.Equal(t, domain.ApprovalNone, c.CostStatus)
	assert.Nil(t, c.ClosedAt)

	// unchanged estimate must still go through approval again
	c = submit(t, e, c, technician, costedPlan("1000"), CostSnapshotOf(c))
	assert.Equal(t, domain.ApprovalPending, c.CostStatus)
	c, err = e.ApproveCost(c, leader)
	require.NoError(t, err)
	c = submit(t, e, c, technician, execution(), CostSnapshot{})
	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "again", FinalCost: amount("1000")}, CostSnapshot{})

	assert.Equal(t, domain.CaseStatusClosed, c.Status)
	assert.Equal(t, 2, c.AttemptNumber)

	c, err = e.Redo(c, csAgent)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSolutionPlan, c.CurrentStage)
	assert.Equal(t, 3, c.AttemptNumber)
}

func TestRedo_Preconditions(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	_, err := e.Redo(c, csAgent)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	done := caseAtStage5(t, e, "10")
	_, err = e.Redo(done, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	redone, err := e.Redo(done, csAgent)
	require.NoError(t, err)
	assert.Equal(t, 2, redone.AttemptNumber)
}

func TestCancel_AfterRejectedCost(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)
	_, err := e.Cancel(c, csAgent)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	c = submit(t, e, c, technician, costedPlan("1000"), CostSnapshot{})
	c, err = e.RejectCost(c, leader, "")
	require.NoError(t, err)

	_, err = e.Cancel(c, technician)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	c, err = e.Cancel(c, csAgent)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusCancelled, c.Status)
	assert.Equal(t, domain.StageSolutionPlan, c.CurrentStage)

	_, err = e.Submit(c, technician, costedPlan("500"), CostSnapshot{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = e.Redo(c, csAgent)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	_, err = e.Advance(c, technician, CostSnapshot{}, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestHistoryEditDoesNotAdvance(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)

	edited := submit(t, e, c, csAgent, InputSubmission{Title: "Leaking pipe (kitchen)", AssignedTo: strPtr(technician.ID)}, CostSnapshot{})
	assert.Equal(t, domain.StageSolutionPlan, edited.CurrentStage)
	assert.Equal(t, "Leaking pipe (kitchen)", edited.Title)

	edited = submit(t, e, edited, technician, InvestigationSubmission{Findings: "Two corroded joints"}, CostSnapshot{})
	assert.Equal(t, domain.StageSolutionPlan, edited.CurrentStage)
}

func TestAdvance_UsesStoredData(t *testing.T) {
	e := testEngine()
	c := newCase(t, e)

	_, err := e.Advance(c, csAgent, CostSnapshot{}, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	c.AssignedTo = strPtr(technician.ID)
	c, err = e.Advance(c, csAgent, CostSnapshot{}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StageInvestigation, c.CurrentStage)

	c.Findings = "Corroded joint"
	c, err = e.Advance(c, technician, CostSnapshot{}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSolutionPlan, c.CurrentStage)
}

func TestInvariantsHoldAcrossLifecycle(t *testing.T) {
	e := testEngine()
	c := caseAtStage5(t, e, "1000")
	require.NoError(t, CheckInvariants(c))
	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("900")}, CostSnapshot{})
	require.NoError(t, CheckInvariants(c))
	c, err := e.ApproveFinalCost(c, leader)
	require.NoError(t, err)
	require.NoError(t, CheckInvariants(c))

	broken := c
	broken.CostRequired = false
	assert.Error(t, CheckInvariants(broken))
	broken = c
	broken.CurrentStage = 6
	assert.Error(t, CheckInvariants(broken))
}

func TestAmounts_RejectSubCentPrecision(t *testing.T) {
	e := testEngine()
	c := caseAtStage3(t, e)

	_, err := e.Submit(c, technician, costedPlan("1000.005"), CostSnapshot{})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, apperrors.CodeValidationFailed, de.Code)
	assert.Equal(t, "estimated_cost", de.Details["field"])

	_, err = e.Submit(c, technician, costedPlan("1000000000000"), CostSnapshot{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	// trailing zeros are still two-decimal amounts
	c = submit(t, e, c, technician, costedPlan("1000.500"), CostSnapshot{})
	assert.Equal(t, domain.ApprovalPending, c.CostStatus)
}

func TestAmounts_FinalCostWithSubCentPrecisionIsRejected(t *testing.T) {
	e := testEngine()
	c := caseAtStage5(t, e, "1000.01")

	_, err := e.Submit(c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("999.996")}, CostSnapshot{})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, apperrors.CodeValidationFailed, de.Code)
	assert.Equal(t, "final_cost", de.Details["field"])

	c = submit(t, e, c, csAgent, ClosingSubmission{ClosingNotes: "done", FinalCost: amount("1000.00")}, CostSnapshot{})
	assert.Equal(t, domain.CaseStatusPending, c.Status)
	assert.Equal(t, domain.ApprovalPending, c.FinalCostStatus)
}

func TestStage3_DroppingCostRequirementSkipsOpenDecision(t *testing.T) {
	e := testEngine()
	noCost := SolutionPlanSubmission{Solution: "Tighten joint instead"}

	pending := caseAtStage3(t, e)
	pending = submit(t, e, pending, technician, costedPlan("1000"), CostSnapshot{})
	require.Equal(t, domain.ApprovalPending, pending.CostStatus)

	c := submit(t, e, pending, technician, noCost, CostSnapshotOf(pending))
	assert.Equal(t, domain.StageExecution, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, c.Status)
	assert.Equal(t, domain.ApprovalNone, c.CostStatus)
	assert.False(t, c.CostRequired)
	assert.Nil(t, c.EstimatedCost)

	rejected, err := e.RejectCost(pending, leader, "too expensive")
	require.NoError(t, err)
	c = submit(t, e, rejected, technician, noCost, CostSnapshotOf(rejected))
	assert.Equal(t, domain.StageExecution, c.CurrentStage)
	assert.Equal(t, domain.CaseStatusInProgress, c.Status)
	assert.Equal(t, domain.ApprovalNone, c.CostStatus)
	assert.Empty(t, c.CostRejectionReason)
}
