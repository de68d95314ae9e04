package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/security"
)

func init() {
	rootCmd.AddCommand(strengthCmd)
}

var strengthCmd = &cobra.Command{
	Use:   "strength [password]",
	Short: "Rate a password's strength",
	Long: `Rate a password. Without an argument the password is read from the
terminal without echo, which keeps it out of shell history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pw string
		if len(args) == 1 {
			pw = args[0]
		} else {
			var err error
			if pw, err = readSecret("Password: "); err != nil {
				return err
			}
		}

		rating := security.EvaluateStrength(pw)
		check := security.ValidatePasswordStrength(pw)

		if jsonOutput {
			return printJSON(struct {
				Strength   security.Strength   `json:"strength"`
				Score      int                 `json:"score"`
				Validation security.Validation `json:"validation"`
			}{rating, security.StrengthScore(pw), check})
		}

		fmt.Printf("Strength: %s (%d/6)\n", rating, security.StrengthScore(pw))
		fmt.Printf("Checks:   %d/100 (%s)\n", check.Score, check.Strength)
		fmt.Printf("  %s at least 8 characters\n", mark(check.Checks.Length))
		fmt.Printf("  %s uppercase letter\n", mark(check.Checks.Uppercase))
		fmt.Printf("  %s lowercase letter\n", mark(check.Checks.Lowercase))
		fmt.Printf("  %s number\n", mark(check.Checks.Numbers))
		fmt.Printf("  %s symbol\n", mark(check.Checks.Symbols))
		return nil
	},
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
