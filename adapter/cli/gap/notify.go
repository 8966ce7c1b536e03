package gap

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidewell/podwatch/adapter/cli"
	"github.com/tidewell/podwatch/internal/coverage/application/commands"
)

var notifyCmd = &cobra.Command{
	Use:   "notify [gap-id]",
	Short: "Notify the pod lead about a gap",
	Long: `Record that the pod lead has been notified and hand the notification
to the delivery channel.

Examples:
  podwatch gap notify gap_550e8400-e29b-41d4-a716-446655440000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.NotifyGapHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		ctx := cmd.Context()
		g, err := app.NotifyGapHandler.Handle(ctx, commands.NotifyGapCommand{GapID: args[0]})
		if err != nil {
			return fmt.Errorf("failed to notify gap: %w", err)
		}

		fmt.Printf("Pod lead %s notified for gap %s\n", g.Pod().LeadName, g.ID())
		return nil
	},
}
