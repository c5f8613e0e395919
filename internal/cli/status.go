package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusEvents int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index size, timings and recent events",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusEvents, "events", "n", 10, "recent events to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Printf("Documents indexed: %d\n", vecIndex.Count())
	fmt.Printf("Policy: %s (external provider: %s)\n", cfg.Policy, cfg.ExternalProvider)

	snapshot := collector.Snapshot()
	if len(snapshot.Operations) > 0 {
		fmt.Println("\nOperation timings:")
		for op, m := range snapshot.Operations {
			fmt.Printf("  %-18s count=%d errors=%d avg=%.1fms\n", op, m.Count, m.Errors, m.AvgTimeMs)
		}
	}

	if recent := events.Snapshot(statusEvents); len(recent) > 0 {
		fmt.Println("\nRecent events:")
		for _, ev := range recent {
			fmt.Printf("  [%s] %s %v\n", ev.TS, ev.Type, ev.Data)
		}
	}

	return nil
}
