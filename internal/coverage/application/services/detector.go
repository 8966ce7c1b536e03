// Package services contains the gap detection sweep.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/application"
	"github.com/tidewell/podwatch/internal/coverage/domain"
	sharedApplication "github.com/tidewell/podwatch/internal/shared/application"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
	"github.com/tidewell/podwatch/pkg/observability"
)

// Detector sweeps an organization's shifts for caregivers who have not
// shown up and materializes gaps for them.
type Detector struct {
	shifts     application.ShiftSnapshotProvider
	gaps       domain.GapRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	metrics    observability.Metrics
	logger     *slog.Logger
}

// NewDetector creates a new detector.
func NewDetector(
	shifts application.ShiftSnapshotProvider,
	gaps domain.GapRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	metrics observability.Metrics,
	logger *slog.Logger,
) *Detector {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		shifts:     shifts,
		gaps:       gaps,
		outboxRepo: outboxRepo,
		uow:        uow,
		metrics:    metrics,
		logger:     logger,
	}
}

// DetectGaps runs one sweep for the organization and returns the gaps
// created by it.
func (d *Detector) DetectGaps(ctx context.Context, organizationID string) ([]*domain.Gap, error) {
	return d.DetectGapsAt(ctx, organizationID, time.Now().UTC())
}

// DetectGapsAt runs one sweep against a fixed point in time. Shifts within
// the late tolerance, shifts with a recorded clock-in, and shifts that
// already have an open gap are skipped. A failure on an individual shift is
// logged and does not abort the rest of the sweep.
func (d *Detector) DetectGapsAt(ctx context.Context, organizationID string, asOf time.Time) ([]*domain.Gap, error) {
	start := time.Now()
	defer func() {
		d.metrics.Timing(observability.MetricSweepDuration, time.Since(start),
			observability.T("organization_id", organizationID))
	}()

	shifts, err := d.shifts.UncoveredShifts(ctx, organizationID, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch uncovered shifts for organization %s: %w", organizationID, err)
	}
	d.metrics.Counter(observability.MetricShiftsScanned, int64(len(shifts)),
		observability.T("organization_id", organizationID))

	created := make([]*domain.Gap, 0)

	for _, shift := range shifts {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		minutesLate := shift.MinutesLate(asOf)
		if minutesLate <= domain.LateToleranceMinutes {
			continue
		}
		if shift.CheckedInAt != nil {
			continue
		}

		hasOpen, err := d.gaps.HasOpenGap(ctx, shift.ID)
		if err != nil {
			d.logger.Error("failed to check for open gap",
				"organization_id", organizationID,
				"shift_id", shift.ID,
				"error", err,
			)
			continue
		}
		if hasOpen {
			continue
		}

		gap, err := domain.DetectGap(
			organizationID,
			shift.ID,
			shift.ScheduledStart,
			shift.ScheduledEnd,
			shift.Patient,
			shift.Caregiver,
			shift.Pod,
			asOf,
			minutesLate,
		)
		if err != nil {
			d.logger.Warn("skipping shift",
				"shift_id", shift.ID,
				"minutes_late", minutesLate,
				"error", err,
			)
			continue
		}

		if err := d.persistGap(ctx, organizationID, gap); err != nil {
			// The registry enforces the open-gap-per-shift invariant
			// atomically; losing the race to a concurrent sweep is a no-op.
			if errors.Is(err, domain.ErrDuplicateGap) {
				d.logger.Debug("gap already open for shift", "shift_id", shift.ID)
				continue
			}
			d.logger.Error("failed to persist gap",
				"organization_id", organizationID,
				"shift_id", shift.ID,
				"error", err,
			)
			continue
		}

		d.metrics.Counter(observability.MetricGapsDetected, 1,
			observability.T("severity", string(gap.Severity())))
		d.logger.Info("coverage gap detected",
			"gap_id", gap.ID(),
			"organization_id", organizationID,
			"shift_id", shift.ID,
			"minutes_late", minutesLate,
			"severity", gap.Severity(),
		)

		created = append(created, gap)
	}

	return created, nil
}

// persistGap stores the gap and its detection event in one transaction.
func (d *Detector) persistGap(ctx context.Context, organizationID string, gap *domain.Gap) error {
	// Collect events before Create; repositories drop uncommitted events
	// on save.
	events := gap.DomainEvents()
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(organizationID))

	msgs, err := outbox.FromEvents(events)
	if err != nil {
		return err
	}

	err = sharedApplication.WithUnitOfWork(ctx, d.uow, func(txCtx context.Context) error {
		if err := d.gaps.Create(txCtx, gap); err != nil {
			return err
		}
		return d.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		return err
	}

	gap.ClearDomainEvents()
	return nil
}
