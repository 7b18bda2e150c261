package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/repair-case-service/internal/domain"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// Engine computes case transitions. It never performs I/O: every method
// takes the current Case value and returns its replacement.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs an engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: func() time.Time { return time.Now().UTC() }}
}

// NewEngineWithClock constructs an engine with a fixed time source.
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// CreateInput describes the opening data of a case.
type CreateInput struct {
	Title           string
	Description     string
	CustomerName    string
	CustomerContact string
	Location        string
}

// Create opens a case at Stage 1.
func (e *Engine) Create(a Actor, input CreateInput) (domain.Case, error) {
	if !a.IsCS() {
		return domain.Case{}, apperrors.NewForbidden("customer service role required to create a case")
	}
	if strings.TrimSpace(input.Title) == "" {
		return domain.Case{}, apperrors.NewFieldValidationError("title", "title required")
	}
	now := e.now()
	return domain.Case{
		CurrentStage:    domain.StageInput,
		Status:          domain.CaseStatusOpen,
		AttemptNumber:   1,
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerContact: strings.TrimSpace(input.CustomerContact),
		Location:        strings.TrimSpace(input.Location),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Submit saves one stage of the case. Saving the case's current stage
// performs that stage's transition; saving an earlier stage only edits
// history. last is the previously saved cost evidence and is consulted for
// Stage 3 saves only.
func (e *Engine) Submit(c domain.Case, a Actor, sub Submission, last CostSnapshot) (domain.Case, error) {
	if sub == nil {
		return c, apperrors.NewValidationError("submission required", nil)
	}
	stage := sub.Stage()
	if !CanEdit(stage, a, c) {
		return c, apperrors.NewForbidden(fmt.Sprintf("not allowed to edit stage %d", stage))
	}
	if err := sub.validate(c); err != nil {
		return c, err
	}

	next := sub.apply(c)
	switch s := sub.(type) {
	case InputSubmission:
		if c.CurrentStage == domain.StageInput {
			next.CurrentStage = domain.StageInvestigation
			next.Status = domain.CaseStatusInProgress
		}
	case InvestigationSubmission:
		if c.CurrentStage == domain.StageInvestigation {
			next.CurrentStage = domain.StageSolutionPlan
		}
	case SolutionPlanSubmission:
		next = e.saveSolutionPlan(c, next, s, last)
	case ExecutionSubmission:
		if c.CurrentStage == domain.StageExecution && !costRoundOpen(c) {
			next.CurrentStage = domain.StageClosing
			next.Status = domain.CaseStatusCompleted
		}
	case ClosingSubmission:
		if c.CurrentStage == domain.StageClosing {
			next = e.saveClosing(c, next, s)
		}
	}
	next.UpdatedAt = e.now()

	if err := CheckInvariants(next); err != nil {
		return c, apperrors.NewInternalError(err)
	}
	return next, nil
}

// Advance re-submits the stored data of the current stage, completing it
// when its required fields are present. costAttachments is the live count
// of cost evidence files.
func (e *Engine) Advance(c domain.Case, a Actor, last CostSnapshot, costAttachments int) (domain.Case, error) {
	if c.Status.Terminal() {
		return c, apperrors.NewInvalidTransition("case is "+string(c.Status), map[string]any{"status": c.Status})
	}
	sub := submissionFromCase(c, c.CurrentStage, costAttachments)
	if sub == nil {
		return c, apperrors.NewInvalidTransition("case has no valid current stage", map[string]any{"current_stage": c.CurrentStage})
	}
	return e.Submit(c, a, sub, last)
}

// resumeStatus is the status a stage carries when nothing is awaiting approval.
func resumeStatus(stage domain.Stage) domain.CaseStatus {
	switch stage {
	case domain.StageInput:
		return domain.CaseStatusOpen
	case domain.StageClosing:
		return domain.CaseStatusCompleted
	default:
		return domain.CaseStatusInProgress
	}
}

// CheckInvariants verifies the structural invariants of a case record.
func CheckInvariants(c domain.Case) error {
	if !c.CurrentStage.Valid() {
		return fmt.Errorf("current stage %d out of range", c.CurrentStage)
	}
	if c.AttemptNumber < 1 {
		return fmt.Errorf("attempt number %d below 1", c.AttemptNumber)
	}
	if c.CostStatus != domain.ApprovalNone && !c.CostRequired {
		return fmt.Errorf("cost status %q set without cost required", c.CostStatus)
	}
	if c.FinalCostStatus != domain.ApprovalNone &&
		!(c.CostRequired && c.CostStatus == domain.ApprovalApproved) {
		return fmt.Errorf("final cost status %q set without an approved estimate", c.FinalCostStatus)
	}
	if c.EstimatedCost != nil && c.EstimatedCost.IsNegative() {
		return fmt.Errorf("estimated cost is negative")
	}
	return nil
}
