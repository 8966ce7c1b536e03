package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tidewell/podwatch/adapter/cli"
	"github.com/tidewell/podwatch/adapter/cli/gap"
	"github.com/tidewell/podwatch/internal/app"
	"github.com/tidewell/podwatch/pkg/config"
	"github.com/tidewell/podwatch/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		cfg = &config.Config{AppEnv: "development"}
	}
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	// Relay any events produced by CLI commands while the process lives.
	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			logger.Warn("outbox processor not started", "error", err)
		}
	}
	if container.InProcessEventBus != nil {
		go func() { _ = container.InProcessEventBus.Start(ctx) }()
	}

	cliApp := &cli.App{
		Detector:             container.Detector,
		NotifyGapHandler:     container.NotifyGapHandler,
		DispatchGapHandler:   container.DispatchGapHandler,
		CoverGapHandler:      container.CoverGapHandler,
		CancelGapHandler:     container.CancelGapHandler,
		GetActiveGapsHandler: container.GetActiveGapsHandler,
	}
	if len(cfg.OrganizationIDs) > 0 {
		cliApp.DefaultOrganizationID = cfg.OrganizationIDs[0]
	}
	cli.SetApp(cliApp)

	cli.AddCommand(gap.Cmd)

	cli.Execute()
}
