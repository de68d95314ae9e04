package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/store"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vault totals and recent activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		stats, err := st.UserStats(cmd.Context())
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(stats)
		}

		fmt.Printf("Vault items:       %d\n", stats.TotalVaultItems)
		fmt.Printf("Unresolved alerts: %d\n", stats.UnresolvedAlerts)
		fmt.Println("\nBy kind:")
		for _, k := range store.Kinds {
			if n := stats.VaultByKind[k]; n > 0 {
				fmt.Printf("  %-9s %d\n", k, n)
			}
		}
		if len(stats.RecentActivities) > 0 {
			fmt.Println("\nRecent activity:")
			for _, a := range stats.RecentActivities {
				fmt.Printf("  %s %s\n", a.Timestamp.Format(time.RFC3339), a.Details)
			}
		}
		return nil
	},
}
