package worker

import (
	"github.com/spec-kit/repair-case-service/internal/service"
)

// StartCaseEventWorker registers the case event handlers.
func StartCaseEventWorker(subscriber *service.CaseEventSubscriber) {
	if subscriber == nil {
		return
	}
	subscriber.RegisterHandlers()
}
