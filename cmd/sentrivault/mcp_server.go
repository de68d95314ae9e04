package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/internal/config"
	"github.com/forest6511/sentrivault/internal/mcp"
	"github.com/forest6511/sentrivault/pkg/audit"
	"github.com/forest6511/sentrivault/pkg/webcheck"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

// mcpServerCmd starts the MCP server for AI assistant integration
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start the MCP server for AI assistant integration",
	Long: `Start an MCP server over stdio. Agents can check websites, generate and
rate passwords, and read vault metadata, alerts and the security report.
Secret values are never returned in plaintext.

Available tools:
  - website_check:     Rate a URL and record the check
  - password_generate: Generate a random or word-based password
  - password_strength: Rate a password
  - vault_list:        List vault items (no values)
  - vault_get_masked:  Show an item's secret fields masked (e.g., "****WXYZ")
  - alerts_list:       List security alerts
  - security_report:   Vault health score and issues

Authentication:
  Set SENTRIVAULT_PASSPHRASE before starting the server; it is read once and
  removed from the environment. The server acts as the account signed in
  with 'sentrivault login'.

Tools can be disabled in ~/.sentrivault/config.yaml:
  mcp:
    disabled_tools: [vault_get_masked]`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func runMCPServer(parent context.Context) error {
	ledgerSource = audit.SourceMCP

	// stdin carries the protocol, so the passphrase must be configured.
	if cfg.Passphrase == "" {
		return fmt.Errorf("set %s or passphrase in %s to run the MCP server", config.EnvPassphrase, config.FileName)
	}
	if err := ensureStore(parent); err != nil {
		return err
	}

	server, err := mcp.NewServer(mcp.ServerOptions{
		Store:       st,
		Checker:     webcheck.New(webcheck.WithDelay(cfg.CheckDelay)),
		Logger:      zlog,
		ToolEnabled: cfg.MCP.ToolEnabled,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		// Don't report context canceled as an error
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
