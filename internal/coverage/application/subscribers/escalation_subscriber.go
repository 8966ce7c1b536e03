// Package subscribers contains event consumers that drive the escalation
// workflow off the bus instead of waiting for an operator.
package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tidewell/podwatch/internal/coverage/application/commands"
	"github.com/tidewell/podwatch/internal/coverage/domain"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/eventbus"
)

// EscalationSubscriber listens for detected gaps and notifies the pod lead
// without operator involvement. Dispatch, cover and cancel stay manual.
type EscalationSubscriber struct {
	notifyHandler *commands.NotifyGapHandler
	logger        *slog.Logger
	enabled       bool
}

// NewEscalationSubscriber creates a new escalation subscriber.
func NewEscalationSubscriber(notifyHandler *commands.NotifyGapHandler, logger *slog.Logger) *EscalationSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &EscalationSubscriber{
		notifyHandler: notifyHandler,
		logger:        logger,
		enabled:       true,
	}
}

// SetEnabled enables or disables the subscriber.
func (s *EscalationSubscriber) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// EventTypes returns the event types this subscriber handles.
func (s *EscalationSubscriber) EventTypes() []string {
	return []string{domain.RoutingKeyGapDetected}
}

// gapDetectedPayload is the subset of the gap.detected payload the
// subscriber needs.
type gapDetectedPayload struct {
	GapID    string `json:"gap_id"`
	ShiftID  string `json:"shift_id"`
	Severity string `json:"severity"`
}

// Handle notifies the pod lead for a freshly detected gap. Transition
// conflicts are expected when an operator raced the subscriber, so they do
// not fail the event.
func (s *EscalationSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	if !s.enabled {
		s.logger.Debug("escalation subscriber disabled, skipping event",
			"routing_key", event.RoutingKey,
		)
		return nil
	}

	var payload gapDetectedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		s.logger.Error("failed to unmarshal gap.detected payload",
			"event_id", event.EventID,
			"error", err,
		)
		return nil
	}

	if payload.GapID == "" {
		s.logger.Warn("gap.detected event without gap ID, skipping auto-notify",
			"event_id", event.EventID,
		)
		return nil
	}

	gap, err := s.notifyHandler.Handle(ctx, commands.NotifyGapCommand{GapID: payload.GapID})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrGapNotFound) {
			s.logger.Debug("gap already escalated or gone, skipping auto-notify",
				"gap_id", payload.GapID,
				"error", err,
			)
			return nil
		}
		s.logger.Error("auto-notify failed",
			"gap_id", payload.GapID,
			"error", err,
		)
		return err
	}

	s.logger.Info("pod lead auto-notified",
		"gap_id", gap.ID(),
		"shift_id", gap.ShiftID(),
		"severity", gap.Severity(),
	)
	return nil
}
