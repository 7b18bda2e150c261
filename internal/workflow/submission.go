package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-case-service/internal/domain"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// Submission is the data an actor saves for one stage. The set of
// implementations is closed: one type per stage.
type Submission interface {
	Stage() domain.Stage
	validate(c domain.Case) error
	apply(c domain.Case) domain.Case
}

// InputSubmission carries Stage 1 data entered by customer service.
type InputSubmission struct {
	Title           string
	Description     string
	CustomerName    string
	CustomerContact string
	Location        string
	AssignedTo      *string
}

// InvestigationSubmission carries Stage 2 data entered by the technician.
type InvestigationSubmission struct {
	Findings  string
	RootCause string
}

// SolutionPlanSubmission carries Stage 3 data. CostAttachmentCount is the
// number of cost evidence files currently stored for the case.
type SolutionPlanSubmission struct {
	Solution            string
	CostRequired        bool
	EstimatedCost       *decimal.Decimal
	CostDescription     string
	CostAttachmentCount int
}

// ExecutionSubmission carries Stage 4 data.
type ExecutionSubmission struct {
	ExecutionReport   string
	ChecklistComplete bool
	SignatureKey      string
	ClientRating      *int
}

// ClosingSubmission carries Stage 5 data entered by customer service.
// A nil FinalCost keeps the stored amount.
type ClosingSubmission struct {
	ClosingNotes string
	FinalCost    *decimal.Decimal
}

func (InputSubmission) Stage() domain.Stage         { return domain.StageInput }
func (InvestigationSubmission) Stage() domain.Stage { return domain.StageInvestigation }
func (SolutionPlanSubmission) Stage() domain.Stage  { return domain.StageSolutionPlan }
func (ExecutionSubmission) Stage() domain.Stage     { return domain.StageExecution }
func (ClosingSubmission) Stage() domain.Stage       { return domain.StageClosing }

func (s InputSubmission) validate(c domain.Case) error {
	if strings.TrimSpace(s.Title) == "" {
		return apperrors.NewFieldValidationError("title", "title required")
	}
	if s.AssignedTo == nil || strings.TrimSpace(*s.AssignedTo) == "" {
		return apperrors.NewFieldValidationError("assigned_to", "technician assignment required")
	}
	if c.AssignedTo != nil && *c.AssignedTo != strings.TrimSpace(*s.AssignedTo) {
		return apperrors.NewFieldValidationError("assigned_to", "technician already assigned")
	}
	return nil
}

func (s InputSubmission) apply(c domain.Case) domain.Case {
	c.Title = strings.TrimSpace(s.Title)
	c.Description = strings.TrimSpace(s.Description)
	c.CustomerName = strings.TrimSpace(s.CustomerName)
	c.CustomerContact = strings.TrimSpace(s.CustomerContact)
	c.Location = strings.TrimSpace(s.Location)
	if c.AssignedTo == nil {
		assignee := strings.TrimSpace(*s.AssignedTo)
		c.AssignedTo = &assignee
	}
	return c
}

func (s InvestigationSubmission) validate(domain.Case) error {
	if strings.TrimSpace(s.Findings) == "" {
		return apperrors.NewFieldValidationError("findings", "findings required")
	}
	return nil
}

func (s InvestigationSubmission) apply(c domain.Case) domain.Case {
	c.Findings = strings.TrimSpace(s.Findings)
	c.RootCause = strings.TrimSpace(s.RootCause)
	return c
}

func (s SolutionPlanSubmission) validate(domain.Case) error {
	if strings.TrimSpace(s.Solution) == "" {
		return apperrors.NewFieldValidationError("solution", "solution required")
	}
	if !s.CostRequired {
		return nil
	}
	if s.EstimatedCost == nil {
		return apperrors.NewFieldValidationError("estimated_cost", "estimated cost required when cost is required")
	}
	return validateAmount("estimated_cost", *s.EstimatedCost)
}

func (s SolutionPlanSubmission) apply(c domain.Case) domain.Case {
	c.Solution = strings.TrimSpace(s.Solution)
	c.CostRequired = s.CostRequired
	if s.CostRequired {
		amount := *s.EstimatedCost
		c.EstimatedCost = &amount
		c.CostDescription = strings.TrimSpace(s.CostDescription)
		c.CostAttachmentCount = s.CostAttachmentCount
	} else {
		c.EstimatedCost = nil
		c.CostDescription = ""
		c.CostAttachmentCount = 0
	}
	return c
}

func (s ExecutionSubmission) validate(domain.Case) error {
	if strings.TrimSpace(s.ExecutionReport) == "" {
		return apperrors.NewFieldValidationError("execution_report", "execution report required")
	}
	if !s.ChecklistComplete {
		return apperrors.NewFieldValidationError("checklist_complete", "checklist must be complete")
	}
	if strings.TrimSpace(s.SignatureKey) == "" {
		return apperrors.NewFieldValidationError("signature_key", "client signature required")
	}
	if s.ClientRating == nil {
		return apperrors.NewFieldValidationError("client_rating", "client rating required")
	}
	if *s.ClientRating < 1 || *s.ClientRating > 5 {
		return apperrors.NewFieldValidationError("client_rating", "client rating must be between 1 and 5")
	}
	return nil
}

func (s ExecutionSubmission) apply(c domain.Case) domain.Case {
	c.ExecutionReport = strings.TrimSpace(s.ExecutionReport)
	c.ChecklistComplete = s.ChecklistComplete
	c.SignatureKey = strings.TrimSpace(s.SignatureKey)
	rating := *s.ClientRating
	c.ClientRating = &rating
	return c
}

func (s ClosingSubmission) validate(domain.Case) error {
	if strings.TrimSpace(s.ClosingNotes) == "" {
		return apperrors.NewFieldValidationError("closing_notes", "closing notes required")
	}
	if s.FinalCost != nil {
		return validateAmount("final_cost", *s.FinalCost)
	}
	return nil
}

func (s ClosingSubmission) apply(c domain.Case) domain.Case {
	c.ClosingNotes = strings.TrimSpace(s.ClosingNotes)
	if s.FinalCost != nil {
		amount := *s.FinalCost
		c.FinalCost = &amount
	}
	return c
}

// Amounts are stored as NUMERIC(14,2).
var maxAmount = decimal.New(1, 12)

// validateAmount rejects amounts the store would round or overflow, so the
// engine decides on exactly the value that gets persisted.
func validateAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewFieldValidationError(field, strings.ReplaceAll(field, "_", " ")+" must not be negative")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperrors.NewFieldValidationError(field, strings.ReplaceAll(field, "_", " ")+" must have at most two decimal places")
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return apperrors.NewFieldValidationError(field, strings.ReplaceAll(field, "_", " ")+" is too large")
	}
	return nil
}

// submissionFromCase rebuilds the stored data of a stage as a submission.
func submissionFromCase(c domain.Case, stage domain.Stage, costAttachments int) Submission {
	switch stage {
	case domain.StageInput:
		return InputSubmission{
			Title:           c.Title,
			Description:     c.Description,
			CustomerName:    c.CustomerName,
			CustomerContact: c.CustomerContact,
			Location:        c.Location,
			AssignedTo:      c.AssignedTo,
		}
	case domain.StageInvestigation:
		return InvestigationSubmission{Findings: c.Findings, RootCause: c.RootCause}
	case domain.StageSolutionPlan:
		return SolutionPlanSubmission{
			Solution:            c.Solution,
			CostRequired:        c.CostRequired,
			EstimatedCost:       c.EstimatedCost,
			CostDescription:     c.CostDescription,
			CostAttachmentCount: costAttachments,
		}
	case domain.StageExecution:
		return ExecutionSubmission{
			ExecutionReport:   c.ExecutionReport,
			ChecklistComplete: c.ChecklistComplete,
			SignatureKey:      c.SignatureKey,
			ClientRating:      c.ClientRating,
		}
	case domain.StageClosing:
		return ClosingSubmission{ClosingNotes: c.ClosingNotes, FinalCost: c.FinalCost}
	default:
		return nil
	}
}
