package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage enumerates the five sequential phases of a case.
type Stage int

const (
	StageInput         Stage = 1
	StageInvestigation Stage = 2
	StageSolutionPlan  Stage = 3
	StageExecution     Stage = 4
	StageClosing       Stage = 5
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{StageInput, StageInvestigation, StageSolutionPlan, StageExecution, StageClosing}

// Valid reports whether the stage is within 1..5.
func (s Stage) Valid() bool {
	return s >= StageInput && s <= StageClosing
}

func (s Stage) String() string {
	switch s {
	case StageInput:
		return "input"
	case StageInvestigation:
		return "investigation"
	case StageSolutionPlan:
		return "solution_plan"
	case StageExecution:
		return "execution"
	case StageClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// CaseStatus enumerates lifecycle states for cases.
type CaseStatus string

const (
	CaseStatusOpen       CaseStatus = "open"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusPending    CaseStatus = "pending"
	CaseStatusCompleted  CaseStatus = "completed"
	CaseStatusClosed     CaseStatus = "closed"
	CaseStatusCancelled  CaseStatus = "cancelled"
	CaseStatusRejected   CaseStatus = "rejected"
)

// CaseStatuses lists every status value.
var CaseStatuses = []CaseStatus{
	CaseStatusOpen,
	CaseStatusInProgress,
	CaseStatusPending,
	CaseStatusCompleted,
	CaseStatusClosed,
	CaseStatusCancelled,
	CaseStatusRejected,
}

// Terminal reports whether no ordinary action may mutate a case in this status.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusClosed || s == CaseStatusCancelled
}

// ApprovalStatus is the state of the cost and final-cost approval rounds.
// The zero value means no round has been opened.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = ""
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalStatuses lists every approval value including none.
var ApprovalStatuses = []ApprovalStatus{ApprovalNone, ApprovalPending, ApprovalApproved, ApprovalRejected}

// Decided reports whether a leader already approved or rejected the round.
func (s ApprovalStatus) Decided() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// Case is the aggregate for a repair/maintenance request. It is handled as a
// value: every transition returns a new Case that replaces the stored one.
type Case struct {
	ID         string
	CaseNumber string

	CurrentStage  Stage
	Status        CaseStatus
	AttemptNumber int

	// Stage 1
	Title           string
	Description     string
	CustomerName    string
	CustomerContact string
	Location        string
	AssignedTo      *string

	// Stage 2
	Findings  string
	RootCause string

	// Stage 3
	Solution            string
	CostRequired        bool
	EstimatedCost       *decimal.Decimal
	CostDescription     string
	// CostAttachmentCount is the number of COST files present at the last
	// Stage 3 save.
	CostAttachmentCount int
	CostStatus          ApprovalStatus
	CostApprovedBy      *string
	CostRejectionReason string

	// Stage 4
	ExecutionReport   string
	ChecklistComplete bool
	SignatureKey      string
	ClientRating      *int

	// Stage 5
	ClosingNotes             string
	FinalCost                *decimal.Decimal
	FinalCostStatus          ApprovalStatus
	FinalCostApprovedBy      *string
	FinalCostRejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// IsAssignedTo reports whether staffID is the case's technician.
func (c Case) IsAssignedTo(staffID string) bool {
	return c.AssignedTo != nil && staffID != "" && *c.AssignedTo == staffID
}
