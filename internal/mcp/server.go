// Package mcp serves sentrivault tools over the Model Context Protocol.
// Agents can score URLs and passwords and inspect vault metadata, but no
// tool ever returns a stored secret in the clear.
package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/forest6511/sentrivault/pkg/security"
	"github.com/forest6511/sentrivault/pkg/store"
	"github.com/forest6511/sentrivault/pkg/webcheck"
)

// maxConcurrentChecks bounds simultaneous website_check calls, each of which
// may sleep for the simulated lookup delay.
const maxConcurrentChecks = 5

// Tool names.
const (
	ToolWebsiteCheck     = "website_check"
	ToolPasswordGenerate = "password_generate"
	ToolPasswordStrength = "password_strength"
	ToolVaultList        = "vault_list"
	ToolVaultGetMasked   = "vault_get_masked"
	ToolAlertsList       = "alerts_list"
	ToolSecurityReport   = "security_report"
)

// Server is the MCP server.
type Server struct {
	server    *mcp.Server
	store     *store.Store
	checker   *webcheck.Checker
	generator *security.Generator
	log       *zap.Logger
	checkSem  chan struct{}
}

// ServerOptions configures NewServer.
type ServerOptions struct {
	// Store backs the vault and alert tools. Required.
	Store *store.Store
	// Checker scores URLs. Defaults to webcheck.New().
	Checker *webcheck.Checker
	// Generator draws passwords. Defaults to crypto/rand.
	Generator *security.Generator
	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
	// ToolEnabled filters registered tools. Nil enables all.
	ToolEnabled func(name string) bool
	// Version is reported to clients.
	Version string
}

// NewServer builds a server and registers the enabled tools.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("mcp: store is required")
	}
	if opts.Checker == nil {
		opts.Checker = webcheck.New()
	}
	if opts.Generator == nil {
		opts.Generator = security.NewGenerator(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ToolEnabled == nil {
		opts.ToolEnabled = func(string) bool { return true }
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "sentrivault",
			Version: opts.Version,
		}, nil),
		store:     opts.Store,
		checker:   opts.Checker,
		generator: opts.Generator,
		log:       opts.Logger,
		checkSem:  make(chan struct{}, maxConcurrentChecks),
	}
	s.registerTools(opts.ToolEnabled)
	return s, nil
}

func (s *Server) registerTools(enabled func(string) bool) {
	if enabled(ToolWebsiteCheck) {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        ToolWebsiteCheck,
			Description: "Score a URL for phishing and malware risk. Returns a 0-100 risk score, a safe/warning/dangerous status, the threats found and recommendations. Dangerous results raise an alert for the signed-in user.",
		}, s.handleWebsiteCheck)
	}
	if enabled(ToolPasswordGenerate) {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        ToolPasswordGenerate,
			Description: "Generate a random password, or a memorable word-based passphrase when words > 0. Returns the password and its strength.",
		}, s.handlePasswordGenerate)
	}
	if enabled(ToolPasswordStrength) {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        ToolPasswordStrength,
			Description: "Rate a password's strength and report which composition checks it passes. The password is not echoed back.",
		}, s.handlePasswordStrength)
	}
	if enabled(ToolVaultList) {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        ToolVaultList,
			Description: "List the signed-in user's vault items with metadata (id, title, kind, dates). Does NOT return secret values.",
		}, s.handleVaultList)
	}
	if enabled(ToolVaultGetMasked) {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        ToolVaultGetMasked,
			Description: "Return masked versions (e.g. '****WXYZ') of one vault item's secret fields, for checking format without exposing values.",
		}, s.handleVaultGetMasked)
	}
	if enabled(ToolAlertsList) {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        ToolAlertsList,
			Description: "List the signed-in user's security alerts, optionally only unresolved ones.",
		}, s.handleAlertsList)
	}
	if enabled(ToolSecurityReport) {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        ToolSecurityReport,
			Description: "Compute the vault health score: weak, reused and expiring credentials plus PIN and alert status. Item names are omitted.",
		}, s.handleSecurityReport)
	}
}

// Run serves over stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server starting")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
