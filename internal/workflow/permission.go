package workflow

import "github.com/spec-kit/repair-case-service/internal/domain"

// editRule decides whether an actor may edit one stage's fields.
type editRule func(a Actor, c domain.Case) bool

// editRules holds exactly one rule per stage. Leaders match none of them;
// their write capability is the approval predicates below.
var editRules = [...]editRule{
	domain.StageInput:         canEditInput,
	domain.StageInvestigation: canEditInvestigation,
	domain.StageSolutionPlan:  canEditSolutionPlan,
	domain.StageExecution:     canEditExecution,
	domain.StageClosing:       canEditClosing,
}

// CanEdit reports whether the actor may save the given stage of the case.
// It is pure and defined for every stage, role and status combination.
func CanEdit(stage domain.Stage, a Actor, c domain.Case) bool {
	if c.Status.Terminal() {
		return false
	}
	if !stage.Valid() {
		return false
	}
	return editRules[stage](a, c)
}

// EditableStages lists the stages the actor may currently save.
func EditableStages(a Actor, c domain.Case) []domain.Stage {
	stages := make([]domain.Stage, 0, len(domain.Stages))
	for _, stage := range domain.Stages {
		if CanEdit(stage, a, c) {
			stages = append(stages, stage)
		}
	}
	return stages
}

func canEditInput(a Actor, c domain.Case) bool {
	return a.IsCS() && !blocked(c.Status)
}

func canEditInvestigation(a Actor, c domain.Case) bool {
	return a.isAssignedTechnician(c) &&
		c.CurrentStage >= domain.StageInvestigation &&
		!blocked(c.Status)
}

func canEditSolutionPlan(a Actor, c domain.Case) bool {
	if !a.isAssignedTechnician(c) {
		return false
	}
	switch {
	case c.CurrentStage >= domain.StageSolutionPlan &&
		(c.Status == domain.CaseStatusInProgress || c.Status == domain.CaseStatusOpen):
		return true
	case c.Status == domain.CaseStatusRejected && c.CostStatus == domain.ApprovalRejected:
		// resubmission after a rejected estimate
		return true
	case c.Status == domain.CaseStatusPending && c.CostRequired && !c.CostStatus.Decided():
		// estimate awaiting approval may still be corrected
		return true
	case c.CostRequired && c.CostStatus == domain.ApprovalApproved && c.CurrentStage >= domain.StageSolutionPlan:
		// approved estimate may be revised and resubmitted
		return true
	default:
		return false
	}
}

func canEditExecution(a Actor, c domain.Case) bool {
	return a.isAssignedTechnician(c) &&
		c.CurrentStage >= domain.StageExecution &&
		!blocked(c.Status)
}

func canEditClosing(a Actor, c domain.Case) bool {
	if !a.IsCS() {
		return false
	}
	switch {
	case c.CurrentStage >= domain.StageClosing && c.Status == domain.CaseStatusCompleted:
		return true
	case c.Status == domain.CaseStatusRejected && c.FinalCostStatus == domain.ApprovalRejected:
		return true
	case c.Status == domain.CaseStatusPending && c.FinalCostStatus == domain.ApprovalPending:
		return true
	default:
		return false
	}
}

func blocked(status domain.CaseStatus) bool {
	return status == domain.CaseStatusRejected || status == domain.CaseStatusCancelled
}

// CanDecideCost reports whether the actor may approve or reject the estimate.
func CanDecideCost(a Actor, c domain.Case) bool {
	return a.IsLeader() &&
		c.Status == domain.CaseStatusPending &&
		c.CostRequired &&
		c.CostStatus == domain.ApprovalPending
}

// CanDecideFinalCost reports whether the actor may approve or reject the final cost.
func CanDecideFinalCost(a Actor, c domain.Case) bool {
	return a.IsLeader() &&
		c.Status == domain.CaseStatusPending &&
		c.FinalCostStatus == domain.ApprovalPending
}

// CanRedo reports whether the actor may reopen the case at Stage 3.
func CanRedo(a Actor, c domain.Case) bool {
	return a.IsCS() &&
		(c.Status == domain.CaseStatusCompleted || c.Status == domain.CaseStatusClosed)
}

// CanCancel reports whether the actor may end the case after a rejected estimate.
func CanCancel(a Actor, c domain.Case) bool {
	return a.IsCS() &&
		!c.Status.Terminal() &&
		c.CurrentStage == domain.StageSolutionPlan &&
		c.CostStatus == domain.ApprovalRejected
}
