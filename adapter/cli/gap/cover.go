package gap

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidewell/podwatch/adapter/cli"
	"github.com/tidewell/podwatch/internal/coverage/application/commands"
)

var coverCmd = &cobra.Command{
	Use:   "cover [gap-id]",
	Short: "Mark a gap as covered",
	Long: `Mark the gapped visit as covered. Works from any open status, so a
gap can be closed directly when the original caregiver arrives late.

Examples:
  podwatch gap cover gap_550e8400-e29b-41d4-a716-446655440000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CoverGapHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		ctx := cmd.Context()
		g, err := app.CoverGapHandler.Handle(ctx, commands.CoverGapCommand{GapID: args[0]})
		if err != nil {
			return fmt.Errorf("failed to cover gap: %w", err)
		}

		fmt.Printf("Gap %s covered", g.ID())
		if rt, ok := g.ResponseTime(); ok {
			fmt.Printf(" (response time %dm)", int(rt/time.Minute))
		}
		fmt.Println()
		return nil
	},
}
