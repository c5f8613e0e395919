package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"passerelle/internal/governance"
)

var (
	checkUser        string
	checkRole        string
	checkDestination string
	checkExternal    bool
	checkExport      bool
)

var checkCmd = &cobra.Command{
	Use:   "check <action>",
	Short: "Validate an action against the sovereign-region policy",
	Long: `Validate a flagged action against the governance policy.

Every validation appends one hash-sealed entry to the audit trail,
denials included. With --export the in-memory trail is also written to
a local JSONL file afterwards.

Examples:
  passerelle check index_document
  passerelle check export_data --user agent42
  passerelle check api_call --external --destination api.openai.com`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkUser, "user", "local", "user id recorded in the trail")
	checkCmd.Flags().StringVar(&checkRole, "role", "agent", "user role recorded in the trail")
	checkCmd.Flags().StringVar(&checkDestination, "destination", "", "external destination of the action")
	checkCmd.Flags().BoolVar(&checkExternal, "external", false, "mark the action as an external call")
	checkCmd.Flags().BoolVar(&checkExport, "export", false, "write the audit trail to a local JSONL file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	decision := gate.Validate(
		governance.Context{
			UserID:   checkUser,
			UserRole: checkRole,
			Region:   cfg.Region,
		},
		governance.Request{
			Action:       args[0],
			ExternalCall: checkExternal,
			Destination:  checkDestination,
		},
	)

	if decision.Allowed {
		fmt.Printf("%s %s\n", color.GreenString("ALLOWED"), decision.Reason)
	} else {
		fmt.Printf("%s %s\n", color.RedString("DENIED"), decision.Reason)
	}

	if verbose {
		summary := gate.AuditSummary()
		fmt.Printf("audit entries=%d critical=%d blocked=%d region=%s\n",
			summary.Total, summary.Critical, summary.Blocked, summary.Region)
	}

	if checkExport {
		path, err := gate.Export()
		if err != nil {
			return fmt.Errorf("export audit trail: %w", err)
		}
		fmt.Printf("Audit trail written to %s\n", path)
	}

	return nil
}
