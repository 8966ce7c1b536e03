// Package commands contains the escalation workflow operations. Each
// handler validates the gap's current status through the aggregate, persists
// the transition together with its domain events, and returns the updated
// gap.
package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/application"
	"github.com/tidewell/podwatch/internal/coverage/domain"
	sharedApplication "github.com/tidewell/podwatch/internal/shared/application"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
	"github.com/tidewell/podwatch/pkg/observability"
)

// notifyTimeout bounds the fire-and-forget delivery attempt.
const notifyTimeout = 30 * time.Second

// NotifyGapCommand contains the data needed to notify the pod lead.
type NotifyGapCommand struct {
	GapID string
}

// NotifyGapHandler handles the NotifyGapCommand.
type NotifyGapHandler struct {
	gaps       domain.GapRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	notifier   application.Notifier
	metrics    observability.Metrics
	logger     *slog.Logger
}

// NewNotifyGapHandler creates a new NotifyGapHandler.
func NewNotifyGapHandler(
	gaps domain.GapRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	notifier application.Notifier,
	metrics observability.Metrics,
	logger *slog.Logger,
) *NotifyGapHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyGapHandler{
		gaps:       gaps,
		outboxRepo: outboxRepo,
		uow:        uow,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Handle executes the NotifyGapCommand. The state transition is committed
// first; delivery to the notification collaborator happens off the critical
// path so a slow transport cannot stall escalation. Delivery failure is
// logged and never rolls back the transition.
func (h *NotifyGapHandler) Handle(ctx context.Context, cmd NotifyGapCommand) (*domain.Gap, error) {
	gap, err := applyTransition(ctx, h.gaps, h.outboxRepo, h.uow, cmd.GapID, func(g *domain.Gap) error {
		return g.Notify(time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricGapsNotified, 1,
		observability.T("severity", string(gap.Severity())))

	go h.deliver(gap)

	return gap, nil
}

func (h *NotifyGapHandler) deliver(gap *domain.Gap) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	recipient := application.Recipient{
		ID:    gap.Pod().LeadID,
		Name:  gap.Pod().LeadName,
		Phone: gap.Pod().LeadPhone,
	}

	if err := h.notifier.Notify(ctx, recipient, application.SummarizeGap(gap)); err != nil {
		h.metrics.Counter(observability.MetricNotificationsFailed, 1)
		h.logger.Warn("pod lead notification delivery failed",
			"gap_id", gap.ID(),
			"pod_lead_id", recipient.ID,
			"severity", gap.Severity(),
			"error", err,
		)
		return
	}

	h.metrics.Counter(observability.MetricNotificationsSent, 1)
	h.logger.Info("pod lead notified",
		"gap_id", gap.ID(),
		"pod_lead_id", recipient.ID,
		"severity", gap.Severity(),
	)
}
