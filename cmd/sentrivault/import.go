package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forest6511/sentrivault/pkg/importer"
	"github.com/forest6511/sentrivault/pkg/store"
)

// Import flags
var (
	importFrom   string
	importDryRun bool
)

func init() {
	vaultCmd.AddCommand(vaultImportCmd)

	vaultImportCmd.Flags().StringVar(&importFrom, "from", "", "Import source: "+strings.Join(importer.ValidSources(), ", "))
	vaultImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without saving")
	_ = vaultImportCmd.MarkFlagRequired("from")
}

var vaultImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import items from another password manager",
	Long: `Import logins, notes, cards and identities exported by another password
manager. Values without a matching field are kept in the item's notes.

Examples:
  sentrivault vault import export.json --from bitwarden
  sentrivault vault import lastpass.csv --from lastpass --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser, err := importer.GetParser(importer.Source(strings.ToLower(importFrom)))
		if err != nil {
			return fmt.Errorf("invalid --from value '%s': must be one of %v", importFrom, importer.ValidSources())
		}

		data, err := readImportFile(args[0])
		if err != nil {
			return err
		}
		result, err := parser.Parse(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s file: %w", importFrom, err)
		}

		for _, warning := range result.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
		for _, skipped := range result.Skipped {
			fmt.Fprintf(os.Stderr, "Skipped: %s (%s)\n", skipped.OriginalName, skipped.Reason)
		}
		if len(result.Items) == 0 {
			fmt.Println("No items found in file")
			return nil
		}

		if importDryRun {
			fmt.Printf("Would import %d items:\n", len(result.Items))
			for _, item := range result.Items {
				fmt.Printf("  [%s] %s\n", item.Fields.Kind(), item.Title)
			}
			return nil
		}

		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		// Fail early instead of once per item.
		user, err := st.CurrentUser(cmd.Context())
		if err != nil {
			return explain(err)
		}

		imported := 0
		for _, item := range result.Items {
			if _, err := st.AddVaultItem(cmd.Context(), item); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", item.Title, err)
				continue
			}
			imported++
		}
		details := fmt.Sprintf("Imported %d of %d items from %s", imported, len(result.Items), parser.Source())
		if _, err := st.AddActivityLog(cmd.Context(), user.ID, store.ActionVaultImport, details, ""); err != nil {
			zlog.Warn("failed to record import activity", zap.Error(err))
		}
		fmt.Println(details)
		return nil
	},
}

// readImportFile reads an export file, refusing symlinks.
func readImportFile(path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("security: refusing to read symlink: %s", absPath)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
