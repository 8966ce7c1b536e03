package commands

import (
	"context"

	"github.com/tidewell/podwatch/internal/coverage/domain"
	sharedApplication "github.com/tidewell/podwatch/internal/shared/application"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
)

// applyTransition loads a gap, applies a workflow transition, and persists
// the gap and its domain events in one transaction. The gap is returned
// unchanged in storage when the transition is illegal.
func applyTransition(
	ctx context.Context,
	gaps domain.GapRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	gapID string,
	transition func(*domain.Gap) error,
) (*domain.Gap, error) {
	var gap *domain.Gap

	err := sharedApplication.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		g, err := gaps.FindByID(txCtx, gapID)
		if err != nil {
			return err
		}
		if g == nil {
			return domain.ErrGapNotFound
		}

		if err := transition(g); err != nil {
			return err
		}

		// Collect events before Update; repositories drop uncommitted
		// events on save.
		events := g.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(g.OrganizationID()))

		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}

		if err := gaps.Update(txCtx, g); err != nil {
			return err
		}

		if err := outboxRepo.SaveBatch(txCtx, msgs); err != nil {
			return err
		}

		gap = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	gap.ClearDomainEvents()
	return gap, nil
}
