package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-case-service/internal/domain"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// CostSnapshot is the last-saved cost evidence of a case. A Stage 3 save
// only counts as a resubmission when the new snapshot differs from it.
type CostSnapshot struct {
	EstimatedCost   *decimal.Decimal `json:"estimated_cost,omitempty"`
	Description     string           `json:"description"`
	AttachmentCount int              `json:"attachment_count"`
}

// CostSnapshotOf captures the cost evidence recorded by the last Stage 3
// save of c.
func CostSnapshotOf(c domain.Case) CostSnapshot {
	return CostSnapshot{
		EstimatedCost:   c.EstimatedCost,
		Description:     c.CostDescription,
		AttachmentCount: c.CostAttachmentCount,
	}
}

// Differs reports whether any cost evidence changed between the snapshots.
func (s CostSnapshot) Differs(other CostSnapshot) bool {
	if !sameAmount(s.EstimatedCost, other.EstimatedCost) {
		return true
	}
	if strings.TrimSpace(s.Description) != strings.TrimSpace(other.Description) {
		return true
	}
	return s.AttachmentCount != other.AttachmentCount
}

func sameAmount(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// saveSolutionPlan applies the Stage 3 transition rules to next, which
// already carries the submitted fields.
func (e *Engine) saveSolutionPlan(prev, next domain.Case, sub SolutionPlanSubmission, last CostSnapshot) domain.Case {
	if !sub.CostRequired {
		next.CostStatus = domain.ApprovalNone
		next.CostApprovedBy = nil
		next.CostRejectionReason = ""
		clearFinalCostRound(&next)
		switch {
		case prev.CurrentStage == domain.StageSolutionPlan:
			next.CurrentStage = domain.StageExecution
			next.Status = domain.CaseStatusInProgress
		case prev.Status == domain.CaseStatusPending || prev.Status == domain.CaseStatusRejected:
			next.Status = resumeStatus(prev.CurrentStage)
		}
		return next
	}

	current := CostSnapshotOf(next)
	previous := prev.CostStatus
	if !prev.CostRequired {
		previous = domain.ApprovalNone
	}

	switch previous {
	case domain.ApprovalNone:
		openCostRound(&next)
	case domain.ApprovalPending:
		next.Status = domain.CaseStatusPending
	case domain.ApprovalApproved, domain.ApprovalRejected:
		if current.Differs(last) {
			openCostRound(&next)
		}
	}
	return next
}

func openCostRound(c *domain.Case) {
	c.CostStatus = domain.ApprovalPending
	c.Status = domain.CaseStatusPending
	c.CostApprovedBy = nil
	c.CostRejectionReason = ""
	clearFinalCostRound(c)
}

// costRoundOpen reports whether an estimate still blocks stage advancement.
func costRoundOpen(c domain.Case) bool {
	return c.CostRequired && c.CostStatus != domain.ApprovalApproved
}

// ApproveCost approves the pending estimate and, in the same transition,
// moves a Stage 3 case on to Stage 4.
func (e *Engine) ApproveCost(c domain.Case, a Actor) (domain.Case, error) {
	if err := requireLeader(a, "approve cost"); err != nil {
		return c, err
	}
	if !CanDecideCost(a, c) {
		return c, costPreconditionError(c)
	}
	next := c
	approver := a.ID
	next.CostStatus = domain.ApprovalApproved
	next.CostApprovedBy = &approver
	next.CostRejectionReason = ""
	if c.CurrentStage == domain.StageSolutionPlan {
		next.CurrentStage = domain.StageExecution
		next.Status = domain.CaseStatusInProgress
	} else {
		next.Status = resumeStatus(c.CurrentStage)
	}
	next.UpdatedAt = e.now()
	return next, nil
}

// RejectCost rejects the pending estimate. The case stays at its stage.
func (e *Engine) RejectCost(c domain.Case, a Actor, reason string) (domain.Case, error) {
	if err := requireLeader(a, "reject cost"); err != nil {
		return c, err
	}
	if !CanDecideCost(a, c) {
		return c, costPreconditionError(c)
	}
	next := c
	next.CostStatus = domain.ApprovalRejected
	next.Status = domain.CaseStatusRejected
	next.CostApprovedBy = nil
	next.CostRejectionReason = strings.TrimSpace(reason)
	next.UpdatedAt = e.now()
	return next, nil
}

func costPreconditionError(c domain.Case) error {
	return apperrors.NewInvalidTransition("cost is not awaiting approval", map[string]any{
		"status":      c.Status,
		"cost_status": c.CostStatus,
	})
}

func requireLeader(a Actor, action string) error {
	if !a.IsLeader() {
		return apperrors.NewForbidden("leader role required to " + action)
	}
	return nil
}
