package gap

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tidewell/podwatch/adapter/cli"
	"github.com/tidewell/podwatch/internal/coverage/application/queries"
	"github.com/tidewell/podwatch/internal/coverage/domain"
)

var organizationID string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List open coverage gaps",
	Long: `List the organization's open coverage gaps with status and severity
breakdowns.

Examples:
  podwatch gap list
  podwatch gap list --org org_123`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetActiveGapsHandler == nil {
			return fmt.Errorf("application not initialized - database connection required")
		}

		org := organizationID
		if org == "" {
			org = app.DefaultOrganizationID
		}
		if org == "" {
			return fmt.Errorf("no organization given, use --org or PODWATCH_ORGANIZATION_IDS")
		}

		ctx := cmd.Context()
		result, err := app.GetActiveGapsHandler.Handle(ctx, queries.GetActiveGapsQuery{
			OrganizationID: org,
		})
		if err != nil {
			return fmt.Errorf("failed to list gaps: %w", err)
		}

		if result.Total == 0 {
			fmt.Println("No open coverage gaps.")
			return nil
		}

		fmt.Printf("Open coverage gaps (%d):\n", result.Total)
		fmt.Println(strings.Repeat("-", 72))

		for _, g := range result.Gaps {
			fmt.Printf("%s %-18s %-9s %3dm late  %s (caregiver: %s)\n",
				severityBadge(g.Severity),
				g.Status,
				g.Severity,
				g.MinutesLate,
				g.PatientName,
				g.CaregiverName,
			)
			fmt.Printf("    id: %s  shift: %s  detected: %s\n",
				g.ID,
				g.ShiftID,
				g.DetectedAt.Format("15:04:05"),
			)
		}

		fmt.Println(strings.Repeat("-", 72))
		fmt.Printf("By severity: critical=%d high=%d medium=%d low=%d\n",
			result.BySeverity[domain.SeverityCritical],
			result.BySeverity[domain.SeverityHigh],
			result.BySeverity[domain.SeverityMedium],
			result.BySeverity[domain.SeverityLow],
		)
		fmt.Printf("By status: detected=%d notified=%d dispatched=%d\n",
			result.ByStatus[domain.GapStatusDetected],
			result.ByStatus[domain.GapStatusPodLeadNotified],
			result.ByStatus[domain.GapStatusDispatched],
		)

		return nil
	},
}

func severityBadge(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "[!!]"
	case domain.SeverityHigh:
		return "[! ]"
	case domain.SeverityMedium:
		return "[~ ]"
	default:
		return "[  ]"
	}
}

func init() {
	listCmd.Flags().StringVar(&organizationID, "org", "", "organization to list gaps for")
}
