package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-case-service/internal/events"
	"github.com/spec-kit/repair-case-service/internal/observability"
)

// CaseEventSubscriber logs case events and counts them per resulting status.
type CaseEventSubscriber struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewCaseEventSubscriber creates the subscriber.
func NewCaseEventSubscriber(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *CaseEventSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseEventSubscriber{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to every case event.
func (s *CaseEventSubscriber) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		s.dispatcher.Subscribe(eventType, s.handle)
	}
}

func (s *CaseEventSubscriber) handle(_ context.Context, event events.Event) error {
	s.metrics.RecordTransition(string(event.Type), string(event.Status))
	s.logger.Info("case event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("case_id", event.CaseID),
		zap.Int("stage", int(event.Stage)),
		zap.String("status", string(event.Status)),
		zap.String("actor_id", event.Actor.StaffID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Any("payload", event.Payload))
	return nil
}
