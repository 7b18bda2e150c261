package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-case-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseCreated          EventType = "case_created"
	EventCaseStageAdvanced    EventType = "case_stage_advanced"
	EventCaseStatusChanged    EventType = "case_status_changed"
	EventCaseCostDecided      EventType = "case_cost_decided"
	EventCaseFinalCostDecided EventType = "case_final_cost_decided"
	EventCaseRedone           EventType = "case_redone"
	EventCaseCancelled        EventType = "case_cancelled"
)

// AllEventTypes lists every event the case service emits.
var AllEventTypes = []EventType{
	EventCaseCreated,
	EventCaseStageAdvanced,
	EventCaseStatusChanged,
	EventCaseCostDecided,
	EventCaseFinalCostDecided,
	EventCaseRedone,
	EventCaseCancelled,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	StaffID string           `json:"staff_id"`
	Role    domain.StaffRole `json:"role"`
}

// Event represents a domain event emitted by services. Stage and Status
// describe the case after the change.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	CaseID    string            `json:"case_id"`
	Stage     domain.Stage      `json:"stage"`
	Status    domain.CaseStatus `json:"status"`
	Actor     Actor             `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   interface{}       `json:"payload"`
}

// CaseCreatedPayload payload.
type CaseCreatedPayload struct {
	CaseNumber string `json:"case_number"`
	Title      string `json:"title"`
}

// CaseStageAdvancedPayload payload.
type CaseStageAdvancedPayload struct {
	FromStage domain.Stage `json:"from_stage"`
	ToStage   domain.Stage `json:"to_stage"`
}

// CaseStatusChangedPayload payload.
type CaseStatusChangedPayload struct {
	OldStatus domain.CaseStatus `json:"old_status"`
	NewStatus domain.CaseStatus `json:"new_status"`
}

// CostDecidedPayload is shared by estimate and final cost decisions.
type CostDecidedPayload struct {
	Decision domain.ApprovalStatus `json:"decision"`
	Amount   *decimal.Decimal      `json:"amount,omitempty"`
	Reason   string                `json:"reason,omitempty"`
}

// CaseRedonePayload payload.
type CaseRedonePayload struct {
	AttemptNumber int `json:"attempt_number"`
}
