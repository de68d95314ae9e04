package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/security"
)

// Security command flags
var (
	securityVerbose bool
	securityDays    int
	securityLimit   int
)

// securityCmd reports vault health.
var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Analyze vault security health",
	Long: `Analyze the security health of your vault and get recommendations.

The security score is calculated from:
  - Password Strength (0-25): Average strength of secret fields
  - Uniqueness (0-25): Share of secret values used only once
  - Expiration (0-25): Cards and licenses that are not expired or expiring
  - Protection (0-25): Vault PIN and open high-severity alerts

Example:
  sentrivault security              # Show security score and top issues
  sentrivault security --verbose    # Show all issues and suggestions
  sentrivault security --json       # Output in JSON format`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		ctx := cmd.Context()
		items, err := st.UserVaultItems(ctx)
		if err != nil {
			return explain(err)
		}
		hasPIN, err := st.HasVaultPIN(ctx)
		if err != nil {
			return explain(err)
		}
		alerts, err := st.UserSecurityAlerts(ctx)
		if err != nil {
			return explain(err)
		}

		opts := []security.CalculatorOption{
			security.WithExpiryDays(securityDays),
			security.WithItemDetails(true),
		}
		if !securityVerbose {
			opts = append(opts, security.WithIssueLimit(securityLimit))
		}
		report, err := security.NewCalculator(opts...).Report(security.VaultSnapshot{
			Items:  items,
			HasPIN: hasPIN,
			Alerts: alerts,
		})
		if err != nil {
			return fmt.Errorf("failed to calculate security score: %w", err)
		}

		if jsonOutput {
			return printJSON(report)
		}
		outputSecurityText(report, securityVerbose)
		return nil
	},
}

// outputSecurityText outputs the report as formatted text.
func outputSecurityText(report *security.HealthReport, verbose bool) {
	emoji := "🔒"
	var rating string
	switch {
	case report.Overall >= 90:
		rating = "Excellent"
	case report.Overall >= 70:
		rating = "Good"
	case report.Overall >= 50:
		emoji = "⚠️"
		rating = "Fair"
	default:
		emoji = "🚨"
		rating = "Needs Attention"
	}

	fmt.Printf("%s Security Score: %d/100 (%s)\n\n", emoji, report.Overall, rating)

	c := report.Components
	fmt.Println("Components:")
	fmt.Printf("  Password Strength: %d/25 %s\n", c.StrengthScore, progressBar(c.StrengthScore, 25))
	fmt.Printf("  Uniqueness:        %d/25 %s\n", c.UniquenessScore, progressBar(c.UniquenessScore, 25))
	fmt.Printf("  Expiration:        %d/25 %s\n", c.ExpirationScore, progressBar(c.ExpirationScore, 25))
	fmt.Printf("  Protection:        %d/25 %s\n", c.ProtectionScore, progressBar(c.ProtectionScore, 25))
	fmt.Println()

	if len(report.Issues) > 0 {
		fmt.Printf("⚠️  Issues (%d):\n", len(report.Issues))
		for i, issue := range report.Issues {
			typeLabel := strings.ToUpper(string(issue.Type))
			itemInfo := ""
			if issue.ItemTitle != "" {
				itemInfo = fmt.Sprintf(" %q", issue.ItemTitle)
			} else if len(issue.ItemTitles) > 0 {
				itemInfo = " " + strings.Join(issue.ItemTitles, ", ")
			}
			fmt.Printf("  %d. [%s]%s: %s\n", i+1, typeLabel, itemInfo, issue.Description)
		}
		if report.Limited {
			fmt.Println("  ... run with --verbose for the full list")
		}
		fmt.Println()
	}

	if len(report.Suggestions) > 0 && verbose {
		fmt.Println("💡 Suggestions:")
		for _, s := range report.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
		fmt.Println()
	}
}

// progressBar creates a simple ASCII progress bar.
func progressBar(value, maxVal int) string {
	width := 20
	filled := value * width / maxVal
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func init() {
	rootCmd.AddCommand(securityCmd)

	securityCmd.Flags().BoolVarP(&securityVerbose, "verbose", "v", false, "Show all issues and suggestions")
	securityCmd.Flags().IntVar(&securityDays, "days", 30, "Expiration warning window in days")
	securityCmd.Flags().IntVar(&securityLimit, "limit", 5, "Maximum weak and duplicate findings each without --verbose")
}
