// Command worker runs the background sweep and outbox processing loops.
// It periodically scans active shifts for coverage gaps, relays outbox
// messages to the event bus, and exposes health endpoints for probes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tidewell/podwatch/internal/app"
	"github.com/tidewell/podwatch/pkg/config"
	"github.com/tidewell/podwatch/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			logger.Error("failed to start outbox processor", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("outbox processor disabled by configuration")
	}

	if container.InProcessEventBus != nil {
		go func() { _ = container.InProcessEventBus.Start(ctx) }()
	}

	go func() {
		if err := container.SweepWorker.Run(ctx); err != nil {
			logger.Error("sweep worker exited", "error", err)
		}
	}()

	go runOutboxCleanup(ctx, container, logger)
	go runStatsReporter(ctx, container, logger)

	healthSrv := startHealthServer(container, logger)

	logger.Info("worker started",
		"health_addr", cfg.WorkerHealthAddr,
		"sweep_interval", cfg.SweepInterval,
		"organizations", len(cfg.OrganizationIDs),
	)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", "error", err)
	}

	logger.Info("worker stopped")
}

// runOutboxCleanup periodically deletes published outbox messages past the
// retention window.
func runOutboxCleanup(ctx context.Context, c *app.Container, logger *slog.Logger) {
	ticker := time.NewTicker(c.Config.OutboxCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := c.OutboxRepo.DeleteOld(ctx, c.Config.OutboxRetentionDays)
			if err != nil {
				logger.Error("outbox cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("outbox cleanup completed",
					"deleted", deleted,
					"retention_days", c.Config.OutboxRetentionDays,
				)
			}
		}
	}
}

// runStatsReporter logs processor and sweep statistics at a fixed interval.
func runStatsReporter(ctx context.Context, c *app.Container, logger *slog.Logger) {
	ticker := time.NewTicker(c.Config.OutboxStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.OutboxProcessor.GetStats()
			logger.Info("worker stats",
				"outbox_published", stats.PublishedCount,
				"outbox_failed", stats.FailedCount,
				"outbox_dead", stats.DeadCount,
				"outbox_lag_seconds", stats.LagSeconds,
				"sweeps", c.SweepWorker.SweepCount(),
				"sweep_failures", c.SweepWorker.FailureCount(),
			)
		}
	}
}

func startHealthServer(c *app.Container, logger *slog.Logger) *http.Server {
	registry := observability.NewHealthRegistry()
	registry.Register("sweep_worker", observability.SweepWorkerHealthChecker(c.SweepWorker.IsRunning))
	if c.DB != nil {
		registry.Register("database", observability.DatabaseHealthChecker(c.DB.Ping))
	}
	if c.SQLiteDB != nil {
		registry.Register("database", observability.DatabaseHealthChecker(func(ctx context.Context) error {
			return c.SQLiteDB.PingContext(ctx)
		}))
	}
	if c.RedisClient != nil {
		registry.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := c.OutboxProcessor.GetStats()
		health := registry.GetOverallHealth(r.Context())

		payload := map[string]any{
			"status":           health.Status,
			"checks":           health.Checks,
			"outbox_running":   stats.IsRunning,
			"outbox_published": stats.PublishedCount,
			"outbox_failed":    stats.FailedCount,
			"outbox_dead":      stats.DeadCount,
			"outbox_lag_s":     stats.LagSeconds,
			"sweeps":           c.SweepWorker.SweepCount(),
			"sweep_failures":   c.SweepWorker.FailureCount(),
		}
		if stats.LastError != "" {
			payload["outbox_last_error"] = stats.LastError
			payload["outbox_last_error_at"] = stats.LastErrorAt
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == observability.HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(payload)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var err error
		switch {
		case c.DB != nil:
			err = c.DB.Ping(ctx)
		case c.SQLiteDB != nil:
			err = c.SQLiteDB.PingContext(ctx)
		}
		if err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              c.Config.WorkerHealthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", "error", err)
		}
	}()

	return srv
}
