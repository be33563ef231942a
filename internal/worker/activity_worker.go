package worker

import (
	"github.com/spec-kit/field-service/internal/service"
)

// StartActivityWorker registers the history and metrics handlers on the
// event dispatcher.
func StartActivityWorker(activityService *service.ActivityService) {
	if activityService == nil {
		return
	}
	activityService.RegisterHandlers()
}
