package gap

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidewell/podwatch/adapter/cli"
	"github.com/tidewell/podwatch/internal/coverage/application/commands"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [gap-id]",
	Short: "Record a replacement caregiver dispatch",
	Long: `Record that a replacement caregiver has been assigned to the gapped
visit.

Examples:
  podwatch gap dispatch gap_550e8400-e29b-41d4-a716-446655440000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.DispatchGapHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		ctx := cmd.Context()
		g, err := app.DispatchGapHandler.Handle(ctx, commands.DispatchGapCommand{GapID: args[0]})
		if err != nil {
			return fmt.Errorf("failed to dispatch gap: %w", err)
		}

		fmt.Printf("Replacement dispatched for gap %s\n", g.ID())
		return nil
	},
}
