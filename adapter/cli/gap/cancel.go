package gap

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidewell/podwatch/adapter/cli"
	"github.com/tidewell/podwatch/internal/coverage/application/commands"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [gap-id]",
	Short: "Cancel a gap",
	Long: `Close a gap whose underlying need disappeared, for example because
the visit was canceled or the shift record was corrected.

Examples:
  podwatch gap cancel gap_550e8400-e29b-41d4-a716-446655440000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CancelGapHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		ctx := cmd.Context()
		g, err := app.CancelGapHandler.Handle(ctx, commands.CancelGapCommand{GapID: args[0]})
		if err != nil {
			return fmt.Errorf("failed to cancel gap: %w", err)
		}

		fmt.Printf("Gap %s canceled\n", g.ID())
		return nil
	},
}
