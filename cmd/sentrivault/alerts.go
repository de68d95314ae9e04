package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/store"
)

// Alert flags
var (
	alertsUnresolved bool
	alertType        string
	alertSeverity    string
	alertTitle       string
	alertDescription string
	alertLocation    string
)

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAddCmd)
	alertsCmd.AddCommand(alertsResolveCmd)

	alertsListCmd.Flags().BoolVar(&alertsUnresolved, "unresolved", false, "Only show unresolved alerts")

	alertsAddCmd.Flags().StringVar(&alertType, "type", string(store.AlertSuspicious), "Alert type: breach, login, password, suspicious")
	alertsAddCmd.Flags().StringVar(&alertSeverity, "severity", string(store.SeverityMedium), "Severity: low, medium, high, critical")
	alertsAddCmd.Flags().StringVar(&alertTitle, "title", "", "Alert title")
	alertsAddCmd.Flags().StringVar(&alertDescription, "description", "", "Alert description")
	alertsAddCmd.Flags().StringVar(&alertLocation, "location", "", "Where the event originated")
	_ = alertsAddCmd.MarkFlagRequired("title")
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Security alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List security alerts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		alerts, err := st.UserSecurityAlerts(cmd.Context())
		if err != nil {
			return explain(err)
		}

		shown := []store.SecurityAlert{}
		for _, a := range alerts {
			if alertsUnresolved && a.Resolved {
				continue
			}
			shown = append(shown, a)
		}

		if jsonOutput {
			return printJSON(shown)
		}
		if len(shown) == 0 {
			fmt.Println("No security alerts")
			return nil
		}
		for _, a := range shown {
			state := "open"
			if a.Resolved {
				state = "resolved"
			}
			fmt.Printf("%s %-8s %-10s %-8s %s\n", a.Timestamp.Format(time.RFC3339), a.Severity, a.Type, state, a.Title)
			fmt.Printf("    id:%s %s\n", a.ID, a.Description)
		}
		fmt.Printf("\nTotal: %d alerts\n", len(shown))
		return nil
	},
}

var alertsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Raise a security alert",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		a, err := st.AddSecurityAlert(cmd.Context(), store.AlertInput{
			Type:        store.AlertType(alertType),
			Title:       alertTitle,
			Description: alertDescription,
			Severity:    store.Severity(alertSeverity),
			Location:    alertLocation,
		})
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(a)
		}
		fmt.Printf("Alert raised: %s (%s)\n", a.Title, a.ID)
		return nil
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark a security alert resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		if err := st.ResolveSecurityAlert(cmd.Context(), args[0]); err != nil {
			return explain(err)
		}
		fmt.Printf("Alert %s resolved\n", args[0])
		return nil
	},
}
