// Package notify implements the fire-and-forget notification sink. This
// build writes to the structured log; a device build would surface the same
// calls as push notifications or UI banners.
package notify

import (
	"log/slog"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
)

// LogNotifier is a slog-backed implementation of ports.Notifier.
// All methods return immediately and never fail.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier writing to the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{
		logger: logger.With("component", "notifier"),
	}
}

// OfferReceived announces a new offer pending accept or decline.
func (n *LogNotifier) OfferReceived(deliveryID kernel.UUID, expiresInSeconds int) {
	n.logger.Info("New delivery offer",
		"delivery_id", deliveryID,
		"expires_in_seconds", expiresInSeconds)
}

// StatusChanged announces a completed status transition.
func (n *LogNotifier) StatusChanged(deliveryID kernel.UUID, status delivery.Status) {
	n.logger.Info("Delivery status changed",
		"delivery_id", deliveryID,
		"status", status.String())
}

// Error announces a user-visible failure.
func (n *LogNotifier) Error(message string) {
	n.logger.Warn("User-visible error", "message", message)
}
