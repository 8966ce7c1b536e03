package cli

import (
	"github.com/tidewell/podwatch/internal/coverage/application/commands"
	"github.com/tidewell/podwatch/internal/coverage/application/queries"
	"github.com/tidewell/podwatch/internal/coverage/application/services"
)

// App holds the CLI application dependencies.
type App struct {
	// Detection
	Detector *services.Detector

	// Workflow Command Handlers
	NotifyGapHandler   *commands.NotifyGapHandler
	DispatchGapHandler *commands.DispatchGapHandler
	CoverGapHandler    *commands.CoverGapHandler
	CancelGapHandler   *commands.CancelGapHandler

	// Query Handlers
	GetActiveGapsHandler *queries.GetActiveGapsHandler

	// Default organization for commands that take none.
	DefaultOrganizationID string
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
