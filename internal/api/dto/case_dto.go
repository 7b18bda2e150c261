package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-case-service/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	CustomerName    string `json:"customer_name"`
	CustomerContact string `json:"customer_contact"`
	Location        string `json:"location"`
}

// InputStageRequest is the Stage 1 payload.
type InputStageRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	CustomerName    string  `json:"customer_name"`
	CustomerContact string  `json:"customer_contact"`
	Location        string  `json:"location"`
	AssignedTo      *string `json:"assigned_to"`
}

// InvestigationStageRequest is the Stage 2 payload.
type InvestigationStageRequest struct {
	Findings  string `json:"findings"`
	RootCause string `json:"root_cause"`
}

// SolutionPlanStageRequest is the Stage 3 payload. Amounts accept JSON
// numbers or strings.
type SolutionPlanStageRequest struct {
	Solution        string           `json:"solution"`
	CostRequired    bool             `json:"cost_required"`
	EstimatedCost   *decimal.Decimal `json:"estimated_cost"`
	CostDescription string           `json:"cost_description"`
}

// ExecutionStageRequest is the Stage 4 payload.
type ExecutionStageRequest struct {
	ExecutionReport   string `json:"execution_report"`
	ChecklistComplete bool   `json:"checklist_complete"`
	SignatureKey      string `json:"signature_key"`
	ClientRating      *int   `json:"client_rating"`
}

// ClosingStageRequest is the Stage 5 payload.
type ClosingStageRequest struct {
	ClosingNotes string           `json:"closing_notes"`
	FinalCost    *decimal.Decimal `json:"final_cost"`
}

// DecisionRequest carries an optional rejection reason.
type DecisionRequest struct {
	Reason string `json:"reason"`
}

// CreateAttachmentRequest payload.
type CreateAttachmentRequest struct {
	Stage      int                   `json:"stage"`
	Type       domain.AttachmentType `json:"type"`
	StorageKey string                `json:"storage_key"`
	FileName   string                `json:"file_name"`
	MimeType   string                `json:"mime_type"`
	SizeBytes  int64                 `json:"size_bytes"`
}

// CaseResponse is the full case record plus the caller's editable stages.
type CaseResponse struct {
	ID              string            `json:"id"`
	CaseNumber      string            `json:"case_number"`
	CurrentStage    domain.Stage      `json:"current_stage"`
	Status          domain.CaseStatus `json:"status"`
	AttemptNumber   int               `json:"attempt_number"`
	EditableStages  []domain.Stage    `json:"editable_stages"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	CustomerName    string            `json:"customer_name"`
	CustomerContact string            `json:"customer_contact"`
	Location        string            `json:"location"`
	AssignedTo      *string           `json:"assigned_to"`

	Findings  string `json:"findings"`
	RootCause string `json:"root_cause"`

	Solution            string           `json:"solution"`
	CostRequired        bool             `json:"cost_required"`
	EstimatedCost       *decimal.Decimal `json:"estimated_cost"`
	CostDescription     string           `json:"cost_description"`
	CostStatus          *string          `json:"cost_status"`
	CostApprovedBy      *string          `json:"cost_approved_by"`
	CostRejectionReason string           `json:"cost_rejection_reason,omitempty"`

	ExecutionReport   string `json:"execution_report"`
	ChecklistComplete bool   `json:"checklist_complete"`
	SignatureKey      string `json:"signature_key"`
	ClientRating      *int   `json:"client_rating"`

	ClosingNotes             string           `json:"closing_notes"`
	FinalCost                *decimal.Decimal `json:"final_cost"`
	FinalCostStatus          *string          `json:"final_cost_status"`
	FinalCostApprovedBy      *string          `json:"final_cost_approved_by"`
	FinalCostRejectionReason string           `json:"final_cost_rejection_reason,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
}

// CaseSummary is the listing row.
type CaseSummary struct {
	ID             string            `json:"id"`
	CaseNumber     string            `json:"case_number"`
	Title          string            `json:"title"`
	CurrentStage   domain.Stage      `json:"current_stage"`
	Status         domain.CaseStatus `json:"status"`
	AttemptNumber  int               `json:"attempt_number"`
	AssignedTo     *string           `json:"assigned_to"`
	EditableStages []domain.Stage    `json:"editable_stages"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// AttachmentResponse represents stored attachment metadata.
type AttachmentResponse struct {
	ID         string                `json:"id"`
	CaseID     string                `json:"case_id"`
	Stage      domain.Stage          `json:"stage"`
	Type       domain.AttachmentType `json:"type"`
	StorageKey string                `json:"storage_key"`
	FileName   string                `json:"file_name"`
	MimeType   string                `json:"mime_type"`
	SizeBytes  int64                 `json:"size_bytes"`
	CreatedAt  time.Time             `json:"created_at"`
}
