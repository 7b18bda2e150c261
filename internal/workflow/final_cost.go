package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-case-service/internal/domain"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// finalCostTolerance is the smallest gap between final and estimated cost
// that requires a leader's approval.
var finalCostTolerance = decimal.New(1, -2)

// FinalCostDiffers reports whether |final - estimated| >= 0.01.
func FinalCostDiffers(final, estimated decimal.Decimal) bool {
	return final.Sub(estimated).Abs().GreaterThanOrEqual(finalCostTolerance)
}

// finalCostEngaged reports whether the final cost must be compared against
// an approved estimate at all.
func finalCostEngaged(c domain.Case) bool {
	return c.CostRequired &&
		c.CostStatus == domain.ApprovalApproved &&
		c.EstimatedCost != nil &&
		c.FinalCost != nil
}

// saveClosing applies the Stage 5 rules: close directly, or open a final
// cost round when the amount departs from the approved estimate.
func (e *Engine) saveClosing(prev, next domain.Case, sub ClosingSubmission) domain.Case {
	if !finalCostEngaged(next) || !FinalCostDiffers(*next.FinalCost, *next.EstimatedCost) {
		clearFinalCostRound(&next)
		e.close(&next)
		return next
	}

	// An approved amount stays approved when the close repeats or omits it.
	if prev.FinalCostStatus == domain.ApprovalApproved &&
		(sub.FinalCost == nil || sameAmount(sub.FinalCost, prev.FinalCost)) {
		e.close(&next)
		return next
	}

	next.FinalCostStatus = domain.ApprovalPending
	next.FinalCostApprovedBy = nil
	next.FinalCostRejectionReason = ""
	next.Status = domain.CaseStatusPending
	return next
}

func (e *Engine) close(c *domain.Case) {
	closedAt := e.now()
	c.Status = domain.CaseStatusClosed
	c.ClosedAt = &closedAt
}

func clearFinalCostRound(c *domain.Case) {
	c.FinalCostStatus = domain.ApprovalNone
	c.FinalCostApprovedBy = nil
	c.FinalCostRejectionReason = ""
}

// ApproveFinalCost approves the pending final cost. It does not close the
// case; customer service closes it with a later Stage 5 save.
func (e *Engine) ApproveFinalCost(c domain.Case, a Actor) (domain.Case, error) {
	if err := requireLeader(a, "approve final cost"); err != nil {
		return c, err
	}
	if !CanDecideFinalCost(a, c) {
		return c, finalCostPreconditionError(c)
	}
	next := c
	approver := a.ID
	next.FinalCostStatus = domain.ApprovalApproved
	next.FinalCostApprovedBy = &approver
	next.FinalCostRejectionReason = ""
	next.Status = domain.CaseStatusCompleted
	next.UpdatedAt = e.now()
	return next, nil
}

// RejectFinalCost rejects the pending final cost.
func (e *Engine) RejectFinalCost(c domain.Case, a Actor, reason string) (domain.Case, error) {
	if err := requireLeader(a, "reject final cost"); err != nil {
		return c, err
	}
	if !CanDecideFinalCost(a, c) {
		return c, finalCostPreconditionError(c)
	}
	next := c
	next.FinalCostStatus = domain.ApprovalRejected
	next.FinalCostApprovedBy = nil
	next.FinalCostRejectionReason = strings.TrimSpace(reason)
	next.Status = domain.CaseStatusRejected
	next.UpdatedAt = e.now()
	return next, nil
}

func finalCostPreconditionError(c domain.Case) error {
	return apperrors.NewInvalidTransition("final cost is not awaiting approval", map[string]any{
		"status":            c.Status,
		"final_cost_status": c.FinalCostStatus,
	})
}
