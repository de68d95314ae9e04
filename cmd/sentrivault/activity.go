package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/audit"
	"github.com/forest6511/sentrivault/pkg/store"
)

// Activity flags
var (
	activityLimit  int
	activityLedger bool
	eventsLimit    int
	eventsSince    string
)

// Ledger export flags
var (
	exportFormat string
	exportSince  string
	exportUntil  string
	exportOutput string
)

var clearForce bool

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activityListCmd)
	activityCmd.AddCommand(activityEventsCmd)
	activityCmd.AddCommand(activityVerifyCmd)
	activityCmd.AddCommand(activityExportCmd)
	activityCmd.AddCommand(activityClearCmd)

	activityListCmd.Flags().IntVar(&activityLimit, "limit", 20, "Maximum number of entries to show (0 for all)")
	activityListCmd.Flags().BoolVar(&activityLedger, "ledger", false, "Mark whether each entry is mirrored in the ledger")

	activityEventsCmd.Flags().IntVar(&eventsLimit, "limit", 100, "Maximum number of events to show")
	activityEventsCmd.Flags().StringVar(&eventsSince, "since", "", "Show events since duration (e.g., 24h, 7d)")

	activityExportCmd.Flags().StringVar(&exportFormat, "format", audit.FormatJSON, "Output format: json, csv")
	activityExportCmd.Flags().StringVar(&exportSince, "since", "", "Export events since duration (e.g., 30d)")
	activityExportCmd.Flags().StringVar(&exportUntil, "until", "", "Export events until date (RFC 3339)")
	activityExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")

	activityClearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Skip confirmation prompt")
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Account activity and the tamper-evident ledger",
}

var activityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the signed-in account's activity, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		logs, err := st.UserActivityLogs(cmd.Context())
		if err != nil {
			return explain(err)
		}
		if activityLimit > 0 && len(logs) > activityLimit {
			logs = logs[:activityLimit]
		}

		var mirrored []bool
		if activityLedger {
			if err := openLedger(); err != nil {
				return err
			}
			mirrored = make([]bool, len(logs))
			for i := range logs {
				hash, err := audit.ContentHash(logs[i])
				if err != nil {
					return err
				}
				if mirrored[i], err = ledger.Exists(hash); err != nil {
					return fmt.Errorf("failed to read ledger: %w", err)
				}
			}
		}

		if jsonOutput {
			if mirrored == nil {
				return printJSON(logs)
			}
			type entry struct {
				store.ActivityLog
				InLedger bool `json:"inLedger"`
			}
			out := make([]entry, len(logs))
			for i := range logs {
				out[i] = entry{ActivityLog: logs[i], InLedger: mirrored[i]}
			}
			return printJSON(out)
		}
		if len(logs) == 0 {
			fmt.Println("No activity recorded")
			return nil
		}
		for i, l := range logs {
			line := fmt.Sprintf("%s %-16s %s", l.Timestamp.Format(time.RFC3339), l.Action, l.Details)
			if l.Location != "" {
				line += " @" + l.Location
			}
			switch {
			case mirrored == nil:
			case mirrored[i]:
				line = "✓ " + line
			default:
				line = "✗ " + line
			}
			fmt.Println(line)
		}
		return nil
	},
}

var activityEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List raw ledger events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var since time.Time
		if eventsSince != "" {
			d, err := parseDuration(eventsSince)
			if err != nil {
				return fmt.Errorf("invalid since format: %w", err)
			}
			since = time.Now().Add(-d)
		}

		if err := ensureLedger(cmd.Context()); err != nil {
			return err
		}
		events, err := ledger.ListEvents(eventsLimit, since)
		if err != nil {
			return fmt.Errorf("failed to list ledger events: %w", err)
		}

		if jsonOutput {
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No ledger events found")
			return nil
		}
		for _, e := range events {
			// Format: TIMESTAMP ACTION SOURCE #SEQ HASH
			hash := e.ContentHash
			if len(hash) > 16 {
				hash = hash[:16] + "..."
			}
			fmt.Printf("%s %s %s #%d %s\n", e.Timestamp, e.ActionType, e.Source, e.Chain.Sequence, hash)
		}
		fmt.Printf("\nTotal: %d events\n", len(events))
		return nil
	},
}

var activityVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the ledger HMAC chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureLedger(cmd.Context()); err != nil {
			return err
		}
		result, err := ledger.Verify()
		if err != nil {
			return fmt.Errorf("failed to verify ledger: %w", err)
		}

		if jsonOutput {
			if err := printJSON(result); err != nil {
				return err
			}
		} else if result.Valid {
			fmt.Printf("✓ Ledger verified: %d records, chain intact\n", result.RecordsTotal)
		} else {
			fmt.Printf("✗ Ledger verification FAILED\n")
			fmt.Printf("  Records total: %d\n", result.RecordsTotal)
			fmt.Printf("  Records verified: %d\n", result.RecordsVerified)
			fmt.Println("  Errors:")
			for _, e := range result.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}
		if !result.Valid {
			return errors.New("ledger integrity check failed")
		}
		return nil
	},
}

var activityExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export ledger events to JSON or CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFormat != audit.FormatJSON && exportFormat != audit.FormatCSV {
			return fmt.Errorf("invalid format: %s (use 'json' or 'csv')", exportFormat)
		}

		var since, until time.Time
		if exportSince != "" {
			d, err := parseDuration(exportSince)
			if err != nil {
				return fmt.Errorf("invalid since format: %w", err)
			}
			since = time.Now().Add(-d)
		}
		if exportUntil != "" {
			var err error
			until, err = time.Parse(time.RFC3339, exportUntil)
			if err != nil {
				return fmt.Errorf("invalid until format (use RFC 3339): %w", err)
			}
		}

		if err := ensureLedger(cmd.Context()); err != nil {
			return err
		}
		data, err := ledger.Export(exportFormat, since, until)
		if err != nil {
			return fmt.Errorf("failed to export ledger: %w", err)
		}

		if exportOutput == "" {
			_, err := os.Stdout.Write(data)
			return err
		}
		path, err := validateOutputPath(exportOutput)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Ledger exported to %s\n", path)
		return nil
	},
}

var activityClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every ledger file and restart the chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureLedger(cmd.Context()); err != nil {
			return err
		}
		if !clearForce {
			answer, err := prompt(fmt.Sprintf("This will delete the ledger in %s. Are you sure? [y/N]: ", ledger.Path()))
			if err != nil {
				return err
			}
			if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
				fmt.Println("Aborted")
				return nil
			}
		}
		if err := ledger.Clear(); err != nil {
			return fmt.Errorf("failed to clear ledger: %w", err)
		}
		fmt.Println("Ledger cleared")
		return nil
	},
}

// validateOutputPath resolves path and requires it to be inside the current
// directory, the home directory or /tmp.
func validateOutputPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	prefixes := []string{cwd, "/tmp"}
	if home, err := os.UserHomeDir(); err == nil {
		prefixes = append(prefixes, home)
	}
	for _, prefix := range prefixes {
		if absPath == prefix || strings.HasPrefix(absPath, prefix+string(filepath.Separator)) {
			return absPath, nil
		}
	}
	return "", errors.New("output path must be within current directory, home directory, or /tmp")
}
