package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepOrg string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single detection sweep",
	Long: `Scan an organization's shifts once and open gaps for caregivers past
the late tolerance. The background worker does the same thing on a
schedule; this command is for operators and scripts.

Examples:
  podwatch sweep
  podwatch sweep --org org_123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Detector == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		org := sweepOrg
		if org == "" {
			org = a.DefaultOrganizationID
		}
		if org == "" {
			return fmt.Errorf("no organization given, use --org or PODWATCH_ORGANIZATION_IDS")
		}

		ctx := cmd.Context()
		created, err := a.Detector.DetectGaps(ctx, org)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		if len(created) == 0 {
			fmt.Println("Sweep complete, no new gaps.")
			return nil
		}

		fmt.Printf("Sweep complete, %d new gap(s):\n", len(created))
		for _, g := range created {
			fmt.Printf("  %s  %s  %dm late  severity=%s  patient=%s\n",
				g.ID(),
				g.ShiftID(),
				g.MinutesLate(),
				g.Severity(),
				g.Patient().Name,
			)
		}

		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepOrg, "org", "", "organization to sweep")
	rootCmd.AddCommand(sweepCmd)
}
