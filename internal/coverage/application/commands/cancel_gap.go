package commands

import (
	"context"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/domain"
	sharedApplication "github.com/tidewell/podwatch/internal/shared/application"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
	"github.com/tidewell/podwatch/pkg/observability"
)

// CancelGapCommand closes a gap whose underlying need disappeared.
type CancelGapCommand struct {
	GapID string
}

// CancelGapHandler handles the CancelGapCommand.
type CancelGapHandler struct {
	gaps       domain.GapRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	metrics    observability.Metrics
}

// NewCancelGapHandler creates a new CancelGapHandler.
func NewCancelGapHandler(gaps domain.GapRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) *CancelGapHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &CancelGapHandler{
		gaps:       gaps,
		outboxRepo: outboxRepo,
		uow:        uow,
		metrics:    metrics,
	}
}

// Handle executes the CancelGapCommand.
func (h *CancelGapHandler) Handle(ctx context.Context, cmd CancelGapCommand) (*domain.Gap, error) {
	gap, err := applyTransition(ctx, h.gaps, h.outboxRepo, h.uow, cmd.GapID, func(g *domain.Gap) error {
		return g.Cancel(time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricGapsCanceled, 1,
		observability.T("severity", string(gap.Severity())))

	return gap, nil
}
