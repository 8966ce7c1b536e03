// Package gap contains the coverage gap command group.
package gap

import (
	"github.com/spf13/cobra"
)

// Cmd is the gap command group
var Cmd = &cobra.Command{
	Use:   "gap",
	Short: "Manage coverage gaps",
	Long:  `List open coverage gaps and move them through the escalation workflow.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(notifyCmd)
	Cmd.AddCommand(dispatchCmd)
	Cmd.AddCommand(coverCmd)
	Cmd.AddCommand(cancelCmd)
}
