package notify

import (
	"context"
	"log/slog"

	"github.com/tidewell/podwatch/internal/coverage/application"
)

// LogNotifier writes notifications to the log. Used in local mode where no
// broker is available.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification instead of delivering it.
func (n *LogNotifier) Notify(_ context.Context, recipient application.Recipient, summary application.GapSummary) error {
	n.logger.Info("gap notification",
		"recipient", recipient.Name,
		"recipient_phone", recipient.Phone,
		"gap_id", summary.GapID,
		"patient", summary.PatientName,
		"minutes_late", summary.MinutesLate,
		"severity", summary.Severity,
	)
	return nil
}
