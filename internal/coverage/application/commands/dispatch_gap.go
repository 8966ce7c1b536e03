package commands

import (
	"context"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/domain"
	sharedApplication "github.com/tidewell/podwatch/internal/shared/application"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
	"github.com/tidewell/podwatch/pkg/observability"
)

// DispatchGapCommand records that a replacement caregiver was assigned.
type DispatchGapCommand struct {
	GapID string
}

// DispatchGapHandler handles the DispatchGapCommand.
type DispatchGapHandler struct {
	gaps       domain.GapRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	metrics    observability.Metrics
}

// NewDispatchGapHandler creates a new DispatchGapHandler.
func NewDispatchGapHandler(gaps domain.GapRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) *DispatchGapHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &DispatchGapHandler{
		gaps:       gaps,
		outboxRepo: outboxRepo,
		uow:        uow,
		metrics:    metrics,
	}
}

// Handle executes the DispatchGapCommand.
func (h *DispatchGapHandler) Handle(ctx context.Context, cmd DispatchGapCommand) (*domain.Gap, error) {
	gap, err := applyTransition(ctx, h.gaps, h.outboxRepo, h.uow, cmd.GapID, func(g *domain.Gap) error {
		return g.Dispatch(time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricGapsDispatched, 1,
		observability.T("severity", string(gap.Severity())))

	return gap, nil
}
