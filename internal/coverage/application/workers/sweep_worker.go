// Package workers contains background workers for the coverage bounded context.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/application/services"
	"github.com/tidewell/podwatch/internal/coverage/domain"
	"github.com/tidewell/podwatch/pkg/observability"
)

// DefaultSweepInterval is the default interval between sweep cycles.
const DefaultSweepInterval = 1 * time.Minute

// SweepWorkerConfig configures the sweep worker.
type SweepWorkerConfig struct {
	Interval        time.Duration
	OrganizationIDs []string
}

// DefaultSweepWorkerConfig returns the default configuration.
func DefaultSweepWorkerConfig() SweepWorkerConfig {
	return SweepWorkerConfig{
		Interval: DefaultSweepInterval,
	}
}

// SweepWorker periodically runs the gap detector against every configured
// organization. A failure for one organization never blocks the others.
type SweepWorker struct {
	detector *services.Detector
	config   SweepWorkerConfig
	metrics  observability.Metrics
	logger   *slog.Logger
	running  atomic.Bool
	sweeps   atomic.Int64
	failures atomic.Int64
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSweepWorker creates a new sweep worker.
func NewSweepWorker(detector *services.Detector, config SweepWorkerConfig, metrics observability.Metrics, logger *slog.Logger) *SweepWorker {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	return &SweepWorker{
		detector: detector,
		config:   config,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Run starts the worker and blocks until context is cancelled or Stop() is called.
func (w *SweepWorker) Run(ctx context.Context) error {
	if len(w.config.OrganizationIDs) == 0 {
		w.logger.Warn("no organizations configured, sweep worker will not start")
		return nil
	}

	w.running.Store(true)
	w.logger.Info("sweep worker started",
		"interval", w.config.Interval,
		"organizations", len(w.config.OrganizationIDs),
	)

	// Run immediately on start
	w.runSweepCycle(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.running.Store(false)
			w.logger.Info("sweep worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.running.Store(false)
			w.logger.Info("sweep worker stopped (stop signal)")
			return nil
		case <-ticker.C:
			w.runSweepCycle(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully. Safe to call more than once.
func (w *SweepWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// IsRunning returns true if the worker is currently running.
func (w *SweepWorker) IsRunning() bool {
	return w.running.Load()
}

// SweepCount returns the number of completed sweep cycles.
func (w *SweepWorker) SweepCount() int64 {
	return w.sweeps.Load()
}

// FailureCount returns the number of per-organization sweep failures.
func (w *SweepWorker) FailureCount() int64 {
	return w.failures.Load()
}

// ForceSweep triggers an immediate sweep of a single organization.
func (w *SweepWorker) ForceSweep(ctx context.Context, organizationID string) ([]*domain.Gap, error) {
	return w.detector.DetectGaps(ctx, organizationID)
}

// runSweepCycle runs a single detection pass for all configured organizations.
func (w *SweepWorker) runSweepCycle(ctx context.Context) {
	w.logger.Debug("starting sweep cycle")

	for _, organizationID := range w.config.OrganizationIDs {
		if err := ctx.Err(); err != nil {
			return // Context cancelled
		}
		w.sweepOrganization(ctx, organizationID)
	}

	w.sweeps.Add(1)
	w.metrics.Counter(observability.MetricSweepsTotal, 1)
	w.logger.Debug("sweep cycle completed")
}

// sweepOrganization runs the detector for one organization.
func (w *SweepWorker) sweepOrganization(ctx context.Context, organizationID string) {
	created, err := w.detector.DetectGaps(ctx, organizationID)
	if err != nil {
		w.failures.Add(1)
		w.metrics.Counter(observability.MetricSweepsFailed, 1,
			observability.T("organization_id", organizationID))
		w.logger.Error("sweep failed for organization",
			"organization_id", organizationID,
			"error", err,
		)
		return
	}

	if len(created) > 0 {
		w.logger.Info("sweep detected new gaps",
			"organization_id", organizationID,
			"gap_count", len(created),
		)
	}
}
