package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/store"
	"github.com/forest6511/sentrivault/pkg/webcheck"
)

var checkNoRecord bool

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkNoRecord, "no-record", false, "Do not log the check or raise alerts")
}

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Rate a website's phishing and scam risk",
	Long: `Rate a website with local heuristics: known malicious domains, phishing
tokens, suspicious keywords, missing HTTPS, domain age and risky TLDs.

When signed in, the check is added to your activity and a high-severity alert
is raised for dangerous sites.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := strings.TrimSpace(args[0])
		if target == "" {
			return errors.New("url is required")
		}

		checker := webcheck.New(webcheck.WithDelay(cfg.CheckDelay))
		res, err := checker.Check(cmd.Context(), target)
		if err != nil {
			return fmt.Errorf("check interrupted: %w", err)
		}

		var alert *store.SecurityAlert
		if !checkNoRecord {
			if err := ensureStore(cmd.Context()); err != nil {
				return err
			}
			alert, err = st.RecordWebsiteCheck(cmd.Context(), res)
			switch {
			case errors.Is(err, store.ErrNotLoggedIn):
				fmt.Fprintln(os.Stderr, "Not signed in: check not recorded")
			case err != nil:
				return explain(err)
			}
		}

		recs := webcheck.Recommendations(res)
		if jsonOutput {
			return printJSON(struct {
				*webcheck.Result
				Recommendations []string             `json:"recommendations"`
				Alert           *store.SecurityAlert `json:"alert,omitempty"`
			}{res, recs, alert})
		}

		fmt.Printf("%s %s: %s (risk %d/100)\n", statusIcon(res.Status), res.URL, strings.ToUpper(string(res.Status)), res.RiskScore)
		fmt.Printf("  HTTPS:      %s\n", yesNo(res.Details.SSL))
		fmt.Printf("  Domain age: %d days\n", res.Details.DomainAge)
		fmt.Printf("  Reputation: %s\n", res.Details.Reputation)
		if res.Details.MalwareDetected {
			fmt.Println("  Malware:    detected")
		}
		if len(res.Threats) > 0 {
			fmt.Println("\nThreats:")
			for _, t := range res.Threats {
				fmt.Printf("  - %s\n", t)
			}
		}
		if len(recs) > 0 {
			fmt.Println("\nRecommendations:")
			for _, r := range recs {
				fmt.Printf("  - %s\n", r)
			}
		}
		if alert != nil {
			fmt.Printf("\nSecurity alert raised: %s (%s)\n", alert.Title, alert.ID)
		}
		return nil
	},
}

func statusIcon(s webcheck.Status) string {
	switch s {
	case webcheck.StatusDangerous:
		return "🚨"
	case webcheck.StatusWarning:
		return "⚠️"
	default:
		return "✓"
	}
}
