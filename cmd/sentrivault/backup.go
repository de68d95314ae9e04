package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/backup"
	"github.com/forest6511/sentrivault/pkg/store"
)

var (
	backupOutput string
	backupStdout bool
	backupForce  bool

	restoreDryRun     bool
	restoreVerifyOnly bool
	restoreInfo       bool
	restoreForce      bool
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)

	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output file path")
	backupCmd.Flags().BoolVar(&backupStdout, "stdout", false, "Output to stdout (for piping)")
	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "Overwrite existing file")

	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Show what would be restored without making changes")
	restoreCmd.Flags().BoolVar(&restoreVerifyOnly, "verify-only", false, "Only verify backup integrity")
	restoreCmd.Flags().BoolVar(&restoreInfo, "info", false, "Print the unverified backup header without asking for the password")
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Skip confirmation prompt")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create an encrypted backup of every account",
	Long: `Create a password-protected backup of the whole record store.

The backup password is independent of the storage passphrase.

Examples:
  # Backup to a file
  sentrivault backup -o vault-backup.enc

  # Backup to stdout (for piping)
  sentrivault backup --stdout > backup.enc`,
	Args: cobra.NoArgs,
	RunE: executeBackup,
}

func executeBackup(cmd *cobra.Command, args []string) error {
	if err := validateBackupFlags(); err != nil {
		return err
	}
	if !backupStdout && !backupForce {
		if _, err := os.Stat(backupOutput); err == nil {
			return fmt.Errorf("output file already exists: %s (use --force to overwrite)", backupOutput)
		}
	}

	if err := ensureStore(cmd.Context()); err != nil {
		return err
	}
	doc, err := st.Load(cmd.Context())
	if err != nil {
		return explain(err)
	}

	password, err := readNewSecret("Enter backup password: ", "Confirm backup password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	var output io.Writer = os.Stdout
	if !backupStdout {
		f, err := os.OpenFile(backupOutput, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	if err := backup.Create(output, doc, []byte(password)); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	if !backupStdout {
		fmt.Fprintf(os.Stderr, "Backup created: %s (%d users, %d items)\n",
			backupOutput, len(doc.Users), len(doc.VaultItems))
	}
	return nil
}

func validateBackupFlags() error {
	if !backupStdout && backupOutput == "" {
		return fmt.Errorf("either --output or --stdout is required")
	}
	if backupStdout && backupOutput != "" {
		return fmt.Errorf("--output and --stdout are mutually exclusive")
	}
	return nil
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Replace the record store with a backup",
	Long: `Restore a backup created by 'sentrivault backup'. The current document is
replaced and every session is signed out.

Examples:
  sentrivault restore backup.enc --info
  sentrivault restore backup.enc --verify-only
  sentrivault restore backup.enc --dry-run
  sentrivault restore backup.enc`,
	Args: cobra.ExactArgs(1),
	RunE: executeRestore,
}

func executeRestore(cmd *cobra.Command, args []string) error {
	if restoreDryRun && restoreVerifyOnly {
		return fmt.Errorf("--dry-run and --verify-only are mutually exclusive")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	if restoreInfo {
		header, err := backup.Inspect(f)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(header)
		}
		printBackupHeader(header)
		fmt.Println("(header not verified; use --verify-only to check integrity)")
		return nil
	}

	password, err := readSecret("Enter backup password: ")
	if err != nil {
		return err
	}
	header, doc, err := backup.Restore(f, []byte(password))
	if errors.Is(err, backup.ErrIntegrityFailed) {
		return errors.New("backup verification failed: wrong password or the file was modified")
	}
	if err != nil {
		return err
	}

	printBackupHeader(header)
	if restoreVerifyOnly {
		fmt.Println("✓ Backup integrity verified")
		return nil
	}
	if restoreDryRun {
		fmt.Println("Dry run: nothing was changed")
		return nil
	}

	if !restoreForce {
		answer, err := prompt("This replaces all current data. Continue? [y/N]: ")
		if err != nil {
			return err
		}
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := ensureStore(cmd.Context()); err != nil {
		return err
	}
	if err := st.Replace(cmd.Context(), doc); err != nil {
		if errors.Is(err, store.ErrCorrupted) {
			return errors.New("current data cannot be opened with this storage passphrase: nothing was restored")
		}
		return explain(err)
	}
	fmt.Println("Restore complete. Sign in again with 'sentrivault login'.")
	return nil
}

func printBackupHeader(h *backup.Header) {
	c := h.Counts
	fmt.Printf("Backup from %s: %d users, %d items, %d alerts, %d activity entries\n",
		h.CreatedAt.Format(time.RFC3339), c.Users, c.VaultItems, c.Alerts, c.Activity)
}
