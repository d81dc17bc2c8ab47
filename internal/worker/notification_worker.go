// Package worker starts the background consumers of domain events.
package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/service"
)

// StartNotificationWorker attaches notification handlers to the dispatcher.
// The dispatcher is synchronous, so handlers run on the publishing request.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		logger.Info("notifications disabled")
		return
	}
	subscribed := notificationService.RegisterHandlers()
	names := make([]string, 0, len(subscribed))
	for _, eventType := range subscribed {
		names = append(names, string(eventType))
	}
	logger.Info("notification worker started", zap.Strings("events", names))
}
