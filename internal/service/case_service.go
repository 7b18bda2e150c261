package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-case-service/internal/domain"
	"github.com/spec-kit/repair-case-service/internal/events"
	"github.com/spec-kit/repair-case-service/internal/repository"
	"github.com/spec-kit/repair-case-service/internal/workflow"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// CaseService runs workflow actions against stored cases. Every action
// reloads the case, evaluates it with the workflow engine and overwrites the
// stored record with the result.
type CaseService struct {
	cases       repository.CaseRepository
	staff       repository.StaffRepository
	attachments repository.AttachmentRepository
	snapshots   repository.CostSnapshotRepository
	dispatcher  events.Dispatcher
	engine      *workflow.Engine
	logger      *zap.Logger
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	CaseRepo       repository.CaseRepository
	StaffRepo      repository.StaffRepository
	AttachmentRepo repository.AttachmentRepository
	SnapshotRepo   repository.CostSnapshotRepository
	Dispatcher     events.Dispatcher
	Engine         *workflow.Engine
	Logger         *zap.Logger
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	engine := deps.Engine
	if engine == nil {
		engine = workflow.NewEngine()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		cases:       deps.CaseRepo,
		staff:       deps.StaffRepo,
		attachments: deps.AttachmentRepo,
		snapshots:   deps.SnapshotRepo,
		dispatcher:  deps.Dispatcher,
		engine:      engine,
		logger:      logger,
	}
}

// CaseView is a case together with the stages the viewer may edit.
type CaseView struct {
	Case           domain.Case
	EditableStages []domain.Stage
}

// CaseListFilter describes staff listing filters.
type CaseListFilter struct {
	Statuses   []domain.CaseStatus
	Stages     []domain.Stage
	AssignedTo *string
	Limit      int
	Offset     int
}

// AttachmentInput defines attachment metadata.
type AttachmentInput struct {
	Stage      domain.Stage
	Type       domain.AttachmentType
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

func newView(c domain.Case, actor workflow.Actor) *CaseView {
	return &CaseView{Case: c, EditableStages: workflow.EditableStages(actor, c)}
}

// Create opens a new case at Stage 1.
func (s *CaseService) Create(ctx context.Context, actor workflow.Actor, input workflow.CreateInput) (*CaseView, error) {
	c, err := s.engine.Create(actor, input)
	if err != nil {
		return nil, err
	}
	c.CaseNumber = generateCaseNumber()
	if err := s.cases.Create(ctx, &c); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("case created", zap.String("case_id", c.ID), zap.String("case_number", c.CaseNumber))
	s.publishEvent(ctx, actor, c, events.EventCaseCreated, events.CaseCreatedPayload{
		CaseNumber: c.CaseNumber,
		Title:      c.Title,
	})
	return newView(c, actor), nil
}

// Get returns the current record of a case.
func (s *CaseService) Get(ctx context.Context, actor workflow.Actor, caseID string) (*CaseView, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return newView(*c, actor), nil
}

// List returns cases visible to the actor. Technicians only see cases
// assigned to them.
func (s *CaseService) List(ctx context.Context, actor workflow.Actor, filter CaseListFilter) ([]CaseView, error) {
	if filter.AssignedTo != nil {
		if _, err := uuid.Parse(*filter.AssignedTo); err != nil {
			return nil, apperrors.NewFieldValidationError("assigned_to", "assigned_to must be a staff id")
		}
	}
	repoFilter := repository.CaseFilter{
		Statuses:   filter.Statuses,
		Stages:     filter.Stages,
		AssignedTo: filter.AssignedTo,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if actor.IsTechnician() {
		id := actor.ID
		repoFilter.AssignedTo = &id
	}

	cases, err := s.cases.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	views := make([]CaseView, 0, len(cases))
	for _, c := range cases {
		views = append(views, *newView(c, actor))
	}
	return views, nil
}

// SubmitStage saves the data of one stage. Saving the current stage
// performs its transition; saving an earlier stage edits history only.
func (s *CaseService) SubmitStage(ctx context.Context, actor workflow.Actor, caseID string, sub workflow.Submission) (*CaseView, error) {
	if sub == nil {
		return nil, apperrors.NewValidationError("submission required", nil)
	}
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !workflow.CanEdit(sub.Stage(), actor, *c) {
		return nil, apperrors.NewForbidden(fmt.Sprintf("not allowed to edit stage %d", sub.Stage()))
	}

	switch typed := sub.(type) {
	case workflow.InputSubmission:
		if err := s.checkAssignee(ctx, *c, typed.AssignedTo); err != nil {
			return nil, err
		}
	case workflow.SolutionPlanSubmission:
		if typed.CostAttachmentCount, err = s.costAttachmentCount(ctx, c.ID); err != nil {
			return nil, err
		}
		sub = typed
	}

	last := s.lastSnapshot(ctx, *c, sub.Stage())
	next, err := s.engine.Submit(*c, actor, sub, last)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, actor, *c, next, sub.Stage() == domain.StageSolutionPlan)
}

// Advance completes the current stage using the data already stored on it.
func (s *CaseService) Advance(ctx context.Context, actor workflow.Actor, caseID string) (*CaseView, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.Status.Terminal() && !workflow.CanEdit(c.CurrentStage, actor, *c) {
		return nil, apperrors.NewForbidden(fmt.Sprintf("not allowed to edit stage %d", c.CurrentStage))
	}

	stage := c.CurrentStage
	costAttachments := 0
	if stage == domain.StageSolutionPlan {
		if costAttachments, err = s.costAttachmentCount(ctx, c.ID); err != nil {
			return nil, err
		}
	}

	last := s.lastSnapshot(ctx, *c, stage)
	next, err := s.engine.Advance(*c, actor, last, costAttachments)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, actor, *c, next, stage == domain.StageSolutionPlan)
}

// ApproveCost records a leader's approval of the estimate.
func (s *CaseService) ApproveCost(ctx context.Context, actor workflow.Actor, caseID string) (*CaseView, error) {
	return s.decide(ctx, actor, caseID, func(c domain.Case) (domain.Case, error) {
		return s.engine.ApproveCost(c, actor)
	}, func(next domain.Case) (events.EventType, interface{}) {
		return events.EventCaseCostDecided, events.CostDecidedPayload{
			Decision: next.CostStatus,
			Amount:   next.EstimatedCost,
		}
	})
}

// RejectCost records a leader's rejection of the estimate.
func (s *CaseService) RejectCost(ctx context.Context, actor workflow.Actor, caseID, reason string) (*CaseView, error) {
	return s.decide(ctx, actor, caseID, func(c domain.Case) (domain.Case, error) {
		return s.engine.RejectCost(c, actor, reason)
	}, func(next domain.Case) (events.EventType, interface{}) {
		return events.EventCaseCostDecided, events.CostDecidedPayload{
			Decision: next.CostStatus,
			Amount:   next.EstimatedCost,
			Reason:   next.CostRejectionReason,
		}
	})
}

// ApproveFinalCost records a leader's approval of a differing final cost.
func (s *CaseService) ApproveFinalCost(ctx context.Context, actor workflow.Actor, caseID string) (*CaseView, error) {
	return s.decide(ctx, actor, caseID, func(c domain.Case) (domain.Case, error) {
		return s.engine.ApproveFinalCost(c, actor)
	}, func(next domain.Case) (events.EventType, interface{}) {
		return events.EventCaseFinalCostDecided, events.CostDecidedPayload{
			Decision: next.FinalCostStatus,
			Amount:   next.FinalCost,
		}
	})
}

// RejectFinalCost records a leader's rejection of a differing final cost.
func (s *CaseService) RejectFinalCost(ctx context.Context, actor workflow.Actor, caseID, reason string) (*CaseView, error) {
	return s.decide(ctx, actor, caseID, func(c domain.Case) (domain.Case, error) {
		return s.engine.RejectFinalCost(c, actor, reason)
	}, func(next domain.Case) (events.EventType, interface{}) {
		return events.EventCaseFinalCostDecided, events.CostDecidedPayload{
			Decision: next.FinalCostStatus,
			Amount:   next.FinalCost,
			Reason:   next.FinalCostRejectionReason,
		}
	})
}

// Redo reopens a completed or closed case at Stage 3 as a new attempt.
func (s *CaseService) Redo(ctx context.Context, actor workflow.Actor, caseID string) (*CaseView, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	next, err := s.engine.Redo(*c, actor)
	if err != nil {
		return nil, err
	}
	if err := s.cases.Update(ctx, &next); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, next.ID); err != nil {
			s.logger.Warn("drop cost snapshot failed", zap.String("case_id", next.ID), zap.Error(err))
		}
	}

	s.logger.Info("case redone", zap.String("case_id", next.ID), zap.Int("attempt_number", next.AttemptNumber))
	s.publishEvent(ctx, actor, next, events.EventCaseRedone, events.CaseRedonePayload{AttemptNumber: next.AttemptNumber})
	s.publishTransitions(ctx, actor, *c, next)
	return newView(next, actor), nil
}

// Cancel terminates a case whose estimate was rejected.
func (s *CaseService) Cancel(ctx context.Context, actor workflow.Actor, caseID string) (*CaseView, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	next, err := s.engine.Cancel(*c, actor)
	if err != nil {
		return nil, err
	}
	if err := s.cases.Update(ctx, &next); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("case cancelled", zap.String("case_id", next.ID))
	s.publishEvent(ctx, actor, next, events.EventCaseCancelled, nil)
	s.publishTransitions(ctx, actor, *c, next)
	return newView(next, actor), nil
}

// AddAttachment registers file metadata against a stage the actor may edit.
func (s *CaseService) AddAttachment(ctx context.Context, actor workflow.Actor, caseID string, input AttachmentInput) (*domain.AttachmentReference, error) {
	if !input.Stage.Valid() {
		return nil, apperrors.NewFieldValidationError("stage", "stage must be between 1 and 5")
	}
	if input.Type == "" {
		input.Type = domain.AttachmentTypeGeneral
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewFieldValidationError("type", "unknown attachment type")
	}
	if strings.TrimSpace(input.StorageKey) == "" {
		return nil, apperrors.NewFieldValidationError("storage_key", "storage_key required")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return nil, apperrors.NewFieldValidationError("file_name", "file_name required")
	}
	if input.SizeBytes < 0 {
		return nil, apperrors.NewFieldValidationError("size_bytes", "size_bytes must not be negative")
	}

	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !workflow.CanEdit(input.Stage, actor, *c) {
		return nil, apperrors.NewForbidden(fmt.Sprintf("not allowed to edit stage %d", input.Stage))
	}

	attachment := &domain.AttachmentReference{
		CaseID:     c.ID,
		Stage:      input.Stage,
		Type:       input.Type,
		StorageKey: strings.TrimSpace(input.StorageKey),
		FileName:   strings.TrimSpace(input.FileName),
		MimeType:   input.MimeType,
		SizeBytes:  input.SizeBytes,
	}
	if attachment.MimeType == "" {
		attachment.MimeType = "application/octet-stream"
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return attachment, nil
}

// DeleteAttachment removes file metadata from a stage the actor may edit.
func (s *CaseService) DeleteAttachment(ctx context.Context, actor workflow.Actor, caseID, attachmentID string) error {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(attachmentID); err != nil {
		return apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
	}
	attachment, err := s.attachments.GetByID(ctx, c.ID, attachmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return apperrors.NewInternalError(err)
	}
	if !workflow.CanEdit(attachment.Stage, actor, *c) {
		return apperrors.NewForbidden(fmt.Sprintf("not allowed to edit stage %d", attachment.Stage))
	}
	if err := s.attachments.Delete(ctx, c.ID, attachmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *CaseService) decide(
	ctx context.Context,
	actor workflow.Actor,
	caseID string,
	transition func(domain.Case) (domain.Case, error),
	describe func(domain.Case) (events.EventType, interface{}),
) (*CaseView, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	next, err := transition(*c)
	if err != nil {
		return nil, err
	}
	if err := s.cases.Update(ctx, &next); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	eventType, payload := describe(next)
	s.logger.Info("cost decision recorded",
		zap.String("case_id", next.ID),
		zap.String("event_type", string(eventType)),
		zap.String("status", string(next.Status)))
	s.publishEvent(ctx, actor, next, eventType, payload)
	s.publishTransitions(ctx, actor, *c, next)
	return newView(next, actor), nil
}

// commit persists a stage save and refreshes the cost snapshot after a
// Stage 3 save.
func (s *CaseService) commit(ctx context.Context, actor workflow.Actor, prev, next domain.Case, solutionPlan bool) (*CaseView, error) {
	if err := s.cases.Update(ctx, &next); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if solutionPlan {
		s.rememberSnapshot(ctx, next)
	}
	if prev.CurrentStage != next.CurrentStage || prev.Status != next.Status {
		s.logger.Info("case transitioned",
			zap.String("case_id", next.ID),
			zap.Int("from_stage", int(prev.CurrentStage)),
			zap.Int("to_stage", int(next.CurrentStage)),
			zap.String("from_status", string(prev.Status)),
			zap.String("to_status", string(next.Status)))
	}
	s.publishTransitions(ctx, actor, prev, next)
	return newView(next, actor), nil
}

func (s *CaseService) load(ctx context.Context, caseID string) (*domain.Case, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, apperrors.NewFieldValidationError("case_id", "case_id required")
	}
	// ids are UUID columns; anything else cannot name a stored case
	if _, err := uuid.Parse(caseID); err != nil {
		return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
	}
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return c, nil
}

// checkAssignee verifies a newly named assignee is an active technician.
func (s *CaseService) checkAssignee(ctx context.Context, c domain.Case, assignee *string) error {
	if assignee == nil || *assignee == "" || c.IsAssignedTo(*assignee) {
		return nil
	}
	if _, err := uuid.Parse(*assignee); err != nil {
		return apperrors.NewFieldValidationError("assigned_to", "assignee not found")
	}
	staff, err := s.staff.GetByID(ctx, *assignee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewFieldValidationError("assigned_to", "assignee not found")
		}
		return apperrors.NewInternalError(err)
	}
	if !staff.Active || staff.Role != domain.StaffRoleTechnician {
		return apperrors.NewFieldValidationError("assigned_to", "assignee must be an active technician")
	}
	return nil
}

func (s *CaseService) costAttachmentCount(ctx context.Context, caseID string) (int, error) {
	if s.attachments == nil {
		return 0, nil
	}
	count, err := s.attachments.Count(ctx, caseID, domain.StageSolutionPlan, domain.AttachmentTypeCost)
	if err != nil {
		return 0, apperrors.NewInternalError(err)
	}
	return count, nil
}

// lastSnapshot returns the cost evidence of the previous Stage 3 save. When
// the store has no entry the stored record, which keeps the attachment count
// of that save, stands in for it.
func (s *CaseService) lastSnapshot(ctx context.Context, c domain.Case, stage domain.Stage) workflow.CostSnapshot {
	if stage != domain.StageSolutionPlan {
		return workflow.CostSnapshot{}
	}
	fallback := workflow.CostSnapshotOf(c)
	if s.snapshots == nil {
		return fallback
	}
	snapshot, ok, err := s.snapshots.Get(ctx, c.ID)
	if err != nil {
		s.logger.Warn("load cost snapshot failed", zap.String("case_id", c.ID), zap.Error(err))
		return fallback
	}
	if !ok {
		return fallback
	}
	return snapshot
}

func (s *CaseService) rememberSnapshot(ctx context.Context, c domain.Case) {
	if s.snapshots == nil {
		return
	}
	var err error
	if c.CostRequired {
		err = s.snapshots.Save(ctx, c.ID, workflow.CostSnapshotOf(c))
	} else {
		err = s.snapshots.Delete(ctx, c.ID)
	}
	if err != nil {
		s.logger.Warn("store cost snapshot failed", zap.String("case_id", c.ID), zap.Error(err))
	}
}

func (s *CaseService) publishTransitions(ctx context.Context, actor workflow.Actor, prev, next domain.Case) {
	if prev.CurrentStage != next.CurrentStage {
		s.publishEvent(ctx, actor, next, events.EventCaseStageAdvanced, events.CaseStageAdvancedPayload{
			FromStage: prev.CurrentStage,
			ToStage:   next.CurrentStage,
		})
	}
	if prev.Status != next.Status {
		s.publishEvent(ctx, actor, next, events.EventCaseStatusChanged, events.CaseStatusChangedPayload{
			OldStatus: prev.Status,
			NewStatus: next.Status,
		})
	}
}

func (s *CaseService) publishEvent(ctx context.Context, actor workflow.Actor, c domain.Case, eventType events.EventType, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CaseID:    c.ID,
		Stage:     c.CurrentStage,
		Status:    c.Status,
		Actor:     events.Actor{StaffID: actor.ID, Role: actor.Role},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

func generateCaseNumber() string {
	return "CASE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
