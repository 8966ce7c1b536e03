package commands

import (
	"context"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/domain"
	sharedApplication "github.com/tidewell/podwatch/internal/shared/application"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
	"github.com/tidewell/podwatch/pkg/observability"
)

// CoverGapCommand confirms that the gapped visit is covered.
type CoverGapCommand struct {
	GapID string
}

// CoverGapHandler handles the CoverGapCommand.
type CoverGapHandler struct {
	gaps       domain.GapRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	metrics    observability.Metrics
}

// NewCoverGapHandler creates a new CoverGapHandler.
func NewCoverGapHandler(gaps domain.GapRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) *CoverGapHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &CoverGapHandler{
		gaps:       gaps,
		outboxRepo: outboxRepo,
		uow:        uow,
		metrics:    metrics,
	}
}

// Handle executes the CoverGapCommand. Covering is legal from any
// non-terminal status; the dispatch step is skipped when the original
// caregiver arrives late.
func (h *CoverGapHandler) Handle(ctx context.Context, cmd CoverGapCommand) (*domain.Gap, error) {
	gap, err := applyTransition(ctx, h.gaps, h.outboxRepo, h.uow, cmd.GapID, func(g *domain.Gap) error {
		return g.Cover(time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricGapsCovered, 1,
		observability.T("severity", string(gap.Severity())))
	if rt, ok := gap.ResponseTime(); ok {
		h.metrics.Timing(observability.MetricResponseTime, rt,
			observability.T("severity", string(gap.Severity())))
	}

	return gap, nil
}
