// Package notify contains notification delivery adapters.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/application"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/eventbus"
)

// RoutingKeyNotificationRequested is the routing key for outbound
// notification requests. A downstream delivery service owns the actual
// SMS/push sending and its retries.
const RoutingKeyNotificationRequested = "coverage.notification.requested"

// notificationRequest is the wire payload consumed by the delivery service.
type notificationRequest struct {
	RecipientID    string    `json:"recipient_id"`
	RecipientName  string    `json:"recipient_name"`
	RecipientPhone string    `json:"recipient_phone"`
	GapID          string    `json:"gap_id"`
	ShiftID        string    `json:"shift_id"`
	PatientName    string    `json:"patient_name"`
	PatientAddress string    `json:"patient_address"`
	CaregiverName  string    `json:"caregiver_name"`
	ScheduledStart time.Time `json:"scheduled_start"`
	MinutesLate    int       `json:"minutes_late"`
	Severity       string    `json:"severity"`
	RequestedAt    time.Time `json:"requested_at"`
}

// AMQPNotifier hands notification requests to the message broker.
type AMQPNotifier struct {
	publisher eventbus.Publisher
}

// NewAMQPNotifier creates a new AMQP-backed notifier.
func NewAMQPNotifier(publisher eventbus.Publisher) *AMQPNotifier {
	return &AMQPNotifier{publisher: publisher}
}

// Notify publishes a notification request for the recipient.
func (n *AMQPNotifier) Notify(ctx context.Context, recipient application.Recipient, summary application.GapSummary) error {
	payload, err := json.Marshal(notificationRequest{
		RecipientID:    recipient.ID,
		RecipientName:  recipient.Name,
		RecipientPhone: recipient.Phone,
		GapID:          summary.GapID,
		ShiftID:        summary.ShiftID,
		PatientName:    summary.PatientName,
		PatientAddress: summary.PatientAddress,
		CaregiverName:  summary.CaregiverName,
		ScheduledStart: summary.ScheduledStart,
		MinutesLate:    summary.MinutesLate,
		Severity:       string(summary.Severity),
		RequestedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification request: %w", err)
	}

	if err := n.publisher.Publish(ctx, RoutingKeyNotificationRequested, payload); err != nil {
		return fmt.Errorf("%w: %v", application.ErrNotificationDeliveryFailed, err)
	}

	return nil
}
