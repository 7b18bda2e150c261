package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-case-service/internal/api/dto"
	"github.com/spec-kit/repair-case-service/internal/auth"
	"github.com/spec-kit/repair-case-service/internal/domain"
	"github.com/spec-kit/repair-case-service/internal/service"
	"github.com/spec-kit/repair-case-service/internal/workflow"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// CaseHandler exposes the case workflow endpoints.
type CaseHandler struct {
	cases *service.CaseService
}

// NewCaseHandler constructs handler.
func NewCaseHandler(caseService *service.CaseService) *CaseHandler {
	return &CaseHandler{cases: caseService}
}

// CreateCase POST /cases.
func (h *CaseHandler) CreateCase(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.cases.Create(c.UserContext(), actor, workflow.CreateInput{
		Title:           req.Title,
		Description:     req.Description,
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		Location:        req.Location,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": caseResponse(view)})
}

// ListCases GET /cases.
func (h *CaseHandler) ListCases(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	filter, err := parseCaseListFilter(c)
	if err != nil {
		return err
	}
	views, err := h.cases.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.CaseSummary, 0, len(views))
	for i := range views {
		items = append(items, caseSummary(&views[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetCase GET /cases/:id.
func (h *CaseHandler) GetCase(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	view, err := h.cases.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseResponse(view)})
}

// SubmitStage PUT /cases/:id/stages/:stage.
func (h *CaseHandler) SubmitStage(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	stage, err := strconv.Atoi(c.Params("stage"))
	if err != nil || !domain.Stage(stage).Valid() {
		return apperrors.NewFieldValidationError("stage", "stage must be between 1 and 5")
	}
	sub, err := parseSubmission(c, domain.Stage(stage))
	if err != nil {
		return err
	}
	view, err := h.cases.SubmitStage(c.UserContext(), actor, c.Params("id"), sub)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseResponse(view)})
}

// AdvanceStage POST /cases/:id/advance.
func (h *CaseHandler) AdvanceStage(c *fiber.Ctx) error {
	return h.act(c, h.cases.Advance)
}

// ApproveCost POST /cases/:id/cost/approve.
func (h *CaseHandler) ApproveCost(c *fiber.Ctx) error {
	return h.act(c, h.cases.ApproveCost)
}

// RejectCost POST /cases/:id/cost/reject.
func (h *CaseHandler) RejectCost(c *fiber.Ctx) error {
	return h.actWithReason(c, h.cases.RejectCost)
}

// ApproveFinalCost POST /cases/:id/final-cost/approve.
func (h *CaseHandler) ApproveFinalCost(c *fiber.Ctx) error {
	return h.act(c, h.cases.ApproveFinalCost)
}

// RejectFinalCost POST /cases/:id/final-cost/reject.
func (h *CaseHandler) RejectFinalCost(c *fiber.Ctx) error {
	return h.actWithReason(c, h.cases.RejectFinalCost)
}

// RedoCase POST /cases/:id/redo.
func (h *CaseHandler) RedoCase(c *fiber.Ctx) error {
	return h.act(c, h.cases.Redo)
}

// CancelCase POST /cases/:id/cancel.
func (h *CaseHandler) CancelCase(c *fiber.Ctx) error {
	return h.act(c, h.cases.Cancel)
}

// AddAttachment POST /cases/:id/attachments.
func (h *CaseHandler) AddAttachment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateAttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	att, err := h.cases.AddAttachment(c.UserContext(), actor, c.Params("id"), service.AttachmentInput{
		Stage:      domain.Stage(req.Stage),
		Type:       req.Type,
		StorageKey: req.StorageKey,
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachmentResponse(att)})
}

// DeleteAttachment DELETE /cases/:id/attachments/:attachmentId.
func (h *CaseHandler) DeleteAttachment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.cases.DeleteAttachment(c.UserContext(), actor, c.Params("id"), c.Params("attachmentId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

type caseAction func(ctx context.Context, actor workflow.Actor, caseID string) (*service.CaseView, error)

func (h *CaseHandler) act(c *fiber.Ctx, action caseAction) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	view, err := action(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseResponse(view)})
}

type caseDecision func(ctx context.Context, actor workflow.Actor, caseID, reason string) (*service.CaseView, error)

func (h *CaseHandler) actWithReason(c *fiber.Ctx, action caseDecision) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	view, err := action(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseResponse(view)})
}

func currentActor(c *fiber.Ctx) (workflow.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return workflow.Actor{}, apperrors.NewUnauthorized("staff required")
	}
	return principal.Actor(), nil
}

func parseSubmission(c *fiber.Ctx, stage domain.Stage) (workflow.Submission, error) {
	invalid := apperrors.NewValidationError("invalid payload", nil)
	switch stage {
	case domain.StageInput:
		var req dto.InputStageRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, invalid
		}
		return workflow.InputSubmission{
			Title:           req.Title,
			Description:     req.Description,
			CustomerName:    req.CustomerName,
			CustomerContact: req.CustomerContact,
			Location:        req.Location,
			AssignedTo:      req.AssignedTo,
		}, nil
	case domain.StageInvestigation:
		var req dto.InvestigationStageRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, invalid
		}
		return workflow.InvestigationSubmission{Findings: req.Findings, RootCause: req.RootCause}, nil
	case domain.StageSolutionPlan:
		var req dto.SolutionPlanStageRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, invalid
		}
		return workflow.SolutionPlanSubmission{
			Solution:        req.Solution,
			CostRequired:    req.CostRequired,
			EstimatedCost:   req.EstimatedCost,
			CostDescription: req.CostDescription,
		}, nil
	case domain.StageExecution:
		var req dto.ExecutionStageRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, invalid
		}
		return workflow.ExecutionSubmission{
			ExecutionReport:   req.ExecutionReport,
			ChecklistComplete: req.ChecklistComplete,
			SignatureKey:      req.SignatureKey,
			ClientRating:      req.ClientRating,
		}, nil
	case domain.StageClosing:
		var req dto.ClosingStageRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, invalid
		}
		return workflow.ClosingSubmission{ClosingNotes: req.ClosingNotes, FinalCost: req.FinalCost}, nil
	default:
		return nil, apperrors.NewFieldValidationError("stage", "stage must be between 1 and 5")
	}
}

func parseCaseListFilter(c *fiber.Ctx) (service.CaseListFilter, error) {
	filter := service.CaseListFilter{}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, domain.CaseStatus(strings.TrimSpace(part)))
		}
	}
	if stages := c.Query("stage"); stages != "" {
		for _, part := range strings.Split(stages, ",") {
			stage, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || !domain.Stage(stage).Valid() {
				return filter, apperrors.NewFieldValidationError("stage", "stage must be between 1 and 5")
			}
			filter.Stages = append(filter.Stages, domain.Stage(stage))
		}
	}
	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}

func approvalPtr(s domain.ApprovalStatus) *string {
	if s == domain.ApprovalNone {
		return nil
	}
	v := string(s)
	return &v
}

func caseResponse(view *service.CaseView) dto.CaseResponse {
	c := view.Case
	return dto.CaseResponse{
		ID:                       c.ID,
		CaseNumber:               c.CaseNumber,
		CurrentStage:             c.CurrentStage,
		Status:                   c.Status,
		AttemptNumber:            c.AttemptNumber,
		EditableStages:           view.EditableStages,
		Title:                    c.Title,
		Description:              c.Description,
		CustomerName:             c.CustomerName,
		CustomerContact:          c.CustomerContact,
		Location:                 c.Location,
		AssignedTo:               c.AssignedTo,
		Findings:                 c.Findings,
		RootCause:                c.RootCause,
		Solution:                 c.Solution,
		CostRequired:             c.CostRequired,
		EstimatedCost:            c.EstimatedCost,
		CostDescription:          c.CostDescription,
		CostStatus:               approvalPtr(c.CostStatus),
		CostApprovedBy:           c.CostApprovedBy,
		CostRejectionReason:      c.CostRejectionReason,
		ExecutionReport:          c.ExecutionReport,
		ChecklistComplete:        c.ChecklistComplete,
		SignatureKey:             c.SignatureKey,
		ClientRating:             c.ClientRating,
		ClosingNotes:             c.ClosingNotes,
		FinalCost:                c.FinalCost,
		FinalCostStatus:          approvalPtr(c.FinalCostStatus),
		FinalCostApprovedBy:      c.FinalCostApprovedBy,
		FinalCostRejectionReason: c.FinalCostRejectionReason,
		CreatedAt:                c.CreatedAt,
		UpdatedAt:                c.UpdatedAt,
		ClosedAt:                 c.ClosedAt,
	}
}

func caseSummary(view *service.CaseView) dto.CaseSummary {
	return dto.CaseSummary{
		ID:             view.Case.ID,
		CaseNumber:     view.Case.CaseNumber,
		Title:          view.Case.Title,
		CurrentStage:   view.Case.CurrentStage,
		Status:         view.Case.Status,
		AttemptNumber:  view.Case.AttemptNumber,
		AssignedTo:     view.Case.AssignedTo,
		EditableStages: view.EditableStages,
		UpdatedAt:      view.Case.UpdatedAt,
	}
}

func attachmentResponse(att *domain.AttachmentReference) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:         att.ID,
		CaseID:     att.CaseID,
		Stage:      att.Stage,
		Type:       att.Type,
		StorageKey: att.StorageKey,
		FileName:   att.FileName,
		MimeType:   att.MimeType,
		SizeBytes:  att.SizeBytes,
		CreatedAt:  att.CreatedAt,
	}
}
