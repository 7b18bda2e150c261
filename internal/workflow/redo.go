package workflow

import (
	"github.com/spec-kit/repair-case-service/internal/domain"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// Redo reopens a completed or closed case at Stage 3 for another attempt.
// The estimate must be approved again; whether one is required is kept.
func (e *Engine) Redo(c domain.Case, a Actor) (domain.Case, error) {
	if !a.IsCS() {
		return c, apperrors.NewForbidden("customer service role required to redo a case")
	}
	if !CanRedo(a, c) {
		return c, apperrors.NewInvalidTransition("only completed or closed cases can be redone", map[string]any{"status": c.Status})
	}
	next := c
	next.CurrentStage = domain.StageSolutionPlan
	next.Status = domain.CaseStatusInProgress
	next.AttemptNumber = c.AttemptNumber + 1
	next.CostStatus = domain.ApprovalNone
	next.CostApprovedBy = nil
	next.CostRejectionReason = ""
	clearFinalCostRound(&next)
	next.ClosedAt = nil
	next.UpdatedAt = e.now()
	return next, nil
}

// Cancel ends a case whose estimate was rejected at Stage 3.
func (e *Engine) Cancel(c domain.Case, a Actor) (domain.Case, error) {
	if !a.IsCS() {
		return c, apperrors.NewForbidden("customer service role required to cancel a case")
	}
	if !CanCancel(a, c) {
		return c, apperrors.NewInvalidTransition("only a stage 3 case with a rejected cost can be cancelled", map[string]any{
			"current_stage": c.CurrentStage,
			"cost_status":   c.CostStatus,
		})
	}
	next := c
	next.Status = domain.CaseStatusCancelled
	next.UpdatedAt = e.now()
	return next, nil
}
