package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/forest6511/sentrivault/internal/config"
	"github.com/forest6511/sentrivault/internal/logger"
	"github.com/forest6511/sentrivault/pkg/audit"
	"github.com/forest6511/sentrivault/pkg/crypto"
	"github.com/forest6511/sentrivault/pkg/storage"
	"github.com/forest6511/sentrivault/pkg/store"
)

var (
	cfg     *config.Config
	zlog    *zap.Logger
	backend *storage.SQLiteBackend
	sealer  *crypto.Sealer
	st      *store.Store
	ledger  *audit.Logger

	// ledgerSource tags ledger entries written by this process.
	ledgerSource = audit.SourceCLI
)

// Global flags
var (
	envFile    string
	jsonOutput bool
)

// stdinReader is shared so buffered input survives across prompts.
var stdinReader = bufio.NewReader(os.Stdin)

var rootCmd = &cobra.Command{
	Use:   "sentrivault",
	Short: "sentrivault is a local, encrypted security vault",
	Long: `An encrypted vault for passwords, cards, keys and other secrets, with
website risk checks, password tools and a tamper-evident activity ledger.`,
	SilenceUsage: true,
	// PersistentPreRunE runs before every command and resolves settings.
	// The store itself is opened lazily by commands that need it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		zlog, err = logger.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file with SENTRIVAULT_* settings")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// ensureStore opens the database, asks for the storage passphrase when it is
// not configured and builds the record store.
func ensureStore(ctx context.Context) error {
	if st != nil {
		return nil
	}

	var err error
	backend, err = storage.OpenSQLite(ctx, cfg.DataDir)
	if err != nil {
		return err
	}

	passphrase := cfg.Passphrase
	if passphrase == "" {
		passphrase, err = readStoragePassphrase(ctx, backend)
		if err != nil {
			return err
		}
	}
	if passphrase == "" {
		return errors.New("storage passphrase cannot be empty")
	}
	// Keep the passphrase out of child process environments.
	_ = os.Unsetenv(config.EnvPassphrase)

	sealer = crypto.NewSealer(passphrase)
	opts := []store.Option{
		store.WithLogger(zlog),
		store.WithResetOnCorruption(cfg.ResetOnCorruption),
	}
	if cfg.Ledger {
		if err := openLedger(); err != nil {
			return err
		}
		opts = append(opts, store.WithRecorder(ledger))
	}
	st = store.New(backend, sealer, opts...)
	return nil
}

// openLedger builds the activity ledger keyed from the storage passphrase.
func openLedger() error {
	if ledger != nil {
		return nil
	}
	l := audit.NewLogger(cfg.LedgerDir(), audit.WithSource(ledgerSource), audit.WithLogger(zlog))
	salt, err := l.KeySalt()
	if err != nil {
		return err
	}
	master, err := sealer.MasterKey(salt)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(master)
	if err := l.SetHMACKey(master); err != nil {
		return err
	}
	ledger = l
	return nil
}

// ensureLedger opens the store (for the passphrase) and the ledger, even
// when mirroring is disabled in the configuration.
func ensureLedger(ctx context.Context) error {
	if err := ensureStore(ctx); err != nil {
		return err
	}
	return openLedger()
}

// readStoragePassphrase prompts for the storage passphrase. Before the first
// document exists it is entered twice, since a typo would become the key.
func readStoragePassphrase(ctx context.Context, b storage.Backend) (string, error) {
	_, exists, err := b.Get(ctx, storage.KeyData)
	if err != nil {
		return "", err
	}
	if exists {
		return readSecret("Enter storage passphrase: ")
	}
	return readNewSecret("Choose a storage passphrase: ", "Confirm storage passphrase: ")
}

// closeStore releases everything ensureStore and openLedger built. It runs
// after every command, including failed ones.
func closeStore() {
	if backend != nil {
		if err := backend.Close(); err != nil {
			zlog.Warn("failed to close database", zap.Error(err))
		}
		backend = nil
	}
	st = nil
	sealer = nil
	ledger = nil
	if zlog != nil {
		_ = zlog.Sync()
	}
}

// Secret input, replaceable in tests.
var (
	readSecret     = readTerminalSecret
	confirmSecrets = func() bool { return isTerminal(int(os.Stdin.Fd())) }
)

// readTerminalSecret prompts on stderr and reads a line without echo when
// stdin is a terminal. Piped input is read as a plain line.
func readTerminalSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return readLine()
	}
	fmt.Fprint(os.Stderr, prompt)
	value, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(value), nil
}

// readNewSecret reads a secret twice and requires both entries to match.
func readNewSecret(prompt, confirm string) (string, error) {
	first, err := readSecret(prompt)
	if err != nil {
		return "", err
	}
	if !confirmSecrets() {
		return first, nil
	}
	second, err := readSecret(confirm)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("entries do not match")
	}
	return first, nil
}

// readLine reads a single line from stdin, trimming trailing newline
func readLine() (string, error) {
	line, err := stdinReader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	value := strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(value, "\r"), nil
}

// prompt prints label when stdin is a terminal and reads one line.
func prompt(label string) (string, error) {
	if isTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, label)
	}
	return readLine()
}

// isTerminal returns true if the file descriptor is a terminal
func isTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// explain turns store sentinel errors into user-facing messages.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrStaleSession):
		return errors.New("session refers to a deleted account: run 'sentrivault login'")
	case errors.Is(err, store.ErrNotLoggedIn):
		return errors.New("not logged in: run 'sentrivault login' or 'sentrivault signup'")
	case errors.Is(err, store.ErrInvalidCredentials):
		return errors.New("invalid email or password")
	case errors.Is(err, store.ErrCorrupted):
		return fmt.Errorf("%w (wrong passphrase? set reset_on_corruption to start over)", err)
	default:
		return err
	}
}

// parseDuration parses a duration string like "30d", "1y", "24h"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return time.ParseDuration(s)
	}

	switch unit {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case 'y':
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return time.ParseDuration(s)
	}
}
