package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/forest6511/sentrivault/internal/cli"
	"github.com/forest6511/sentrivault/pkg/security"
	"github.com/forest6511/sentrivault/pkg/store"
	"github.com/forest6511/sentrivault/pkg/webcheck"
)

// WebsiteCheckInput is the input of website_check.
type WebsiteCheckInput struct {
	URL string `json:"url"`
}

// WebsiteCheckOutput is the output of website_check.
type WebsiteCheckOutput struct {
	URL                string   `json:"url"`
	Status             string   `json:"status"`
	RiskScore          int      `json:"risk_score"`
	Threats            []string `json:"threats"`
	SSL                bool     `json:"ssl"`
	DomainAge          int      `json:"domain_age_days"`
	Reputation         string   `json:"reputation"`
	MalwareDetected    bool     `json:"malware_detected"`
	PhishingIndicators []string `json:"phishing_indicators"`
	Recommendations    []string `json:"recommendations"`
	AlertRaised        bool     `json:"alert_raised"`
	Recorded           bool     `json:"recorded"`
	CheckedAt          string   `json:"checked_at"`
}

// PasswordGenerateInput is the input of password_generate. Unset flags default
// to true; a positive Words switches to a word-based passphrase.
type PasswordGenerateInput struct {
	Length         int   `json:"length,omitempty"`
	Uppercase      *bool `json:"uppercase,omitempty"`
	Lowercase      *bool `json:"lowercase,omitempty"`
	Numbers        *bool `json:"numbers,omitempty"`
	Symbols        *bool `json:"symbols,omitempty"`
	ExcludeSimilar *bool `json:"exclude_similar,omitempty"`
	Words          int   `json:"words,omitempty"`
}

// PasswordGenerateOutput is the output of password_generate.
type PasswordGenerateOutput struct {
	Password string `json:"password"`
	Strength string `json:"strength"`
}

// PasswordStrengthInput is the input of password_strength.
type PasswordStrengthInput struct {
	Password string `json:"password"`
}

// PasswordStrengthOutput is the output of password_strength.
type PasswordStrengthOutput struct {
	Strength        string          `json:"strength"`
	Score           int             `json:"score"`
	ValidationScore int             `json:"validation_score"`
	Checks          security.Checks `json:"checks"`
	Length          int             `json:"length"`
}

// VaultListInput is the input of vault_list.
type VaultListInput struct {
	Kind string `json:"kind,omitempty"`
}

// VaultListOutput is the output of vault_list.
type VaultListOutput struct {
	Items []VaultItemInfo `json:"items"`
}

// VaultItemInfo is vault item metadata without values.
type VaultItemInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Kind      string `json:"kind"`
	HasNotes  bool   `json:"has_notes"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// VaultGetMaskedInput is the input of vault_get_masked.
type VaultGetMaskedInput struct {
	ID string `json:"id"`
}

// VaultGetMaskedOutput is the output of vault_get_masked.
type VaultGetMaskedOutput struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Kind   string        `json:"kind"`
	Fields []MaskedField `json:"fields"`
}

// MaskedField is one masked secret value.
type MaskedField struct {
	Name        string `json:"name"`
	MaskedValue string `json:"masked_value"`
	ValueLength int    `json:"value_length"`
}

// AlertsListInput is the input of alerts_list.
type AlertsListInput struct {
	UnresolvedOnly bool `json:"unresolved_only,omitempty"`
}

// AlertsListOutput is the output of alerts_list.
type AlertsListOutput struct {
	Alerts []AlertInfo `json:"alerts"`
}

// AlertInfo is one alert as reported to agents.
type AlertInfo struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Timestamp   string `json:"timestamp"`
	Resolved    bool   `json:"resolved"`
}

// SecurityReportInput is the input of security_report.
type SecurityReportInput struct{}

// SecurityReportOutput is the output of security_report.
type SecurityReportOutput struct {
	Overall     int         `json:"overall"`
	Strength    int         `json:"strength"`
	Uniqueness  int         `json:"uniqueness"`
	Expiration  int         `json:"expiration"`
	Protection  int         `json:"protection"`
	Issues      []IssueInfo `json:"issues"`
	Suggestions []string    `json:"suggestions"`
}

// IssueInfo is one health issue without item names.
type IssueInfo struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

func (s *Server) handleWebsiteCheck(ctx context.Context, _ *mcp.CallToolRequest, input WebsiteCheckInput) (*mcp.CallToolResult, WebsiteCheckOutput, error) {
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return nil, WebsiteCheckOutput{}, errors.New("url is required")
	}

	select {
	case s.checkSem <- struct{}{}:
		defer func() { <-s.checkSem }()
	case <-ctx.Done():
		return nil, WebsiteCheckOutput{}, ctx.Err()
	default:
		return nil, WebsiteCheckOutput{}, fmt.Errorf("too many concurrent checks (max %d)", maxConcurrentChecks)
	}

	res, err := s.checker.Check(ctx, url)
	if err != nil {
		return nil, WebsiteCheckOutput{}, fmt.Errorf("check failed: %w", err)
	}

	out := WebsiteCheckOutput{
		URL:                res.URL,
		Status:             string(res.Status),
		RiskScore:          res.RiskScore,
		Threats:            nonNil(res.Threats),
		SSL:                res.Details.SSL,
		DomainAge:          res.Details.DomainAge,
		Reputation:         string(res.Details.Reputation),
		MalwareDetected:    res.Details.MalwareDetected,
		PhishingIndicators: nonNil(res.Details.PhishingIndicators),
		Recommendations:    nonNil(webcheck.Recommendations(res)),
		CheckedAt:          res.LastChecked.Format(time.RFC3339),
	}

	// Checks still work without a session; they just are not recorded.
	alert, err := s.store.RecordWebsiteCheck(ctx, res)
	switch {
	case err == nil:
		out.Recorded = true
		out.AlertRaised = alert != nil
	case errors.Is(err, store.ErrNotLoggedIn):
	default:
		s.log.Warn("failed to record website check", zap.Error(err))
	}
	return nil, out, nil
}

func (s *Server) handlePasswordGenerate(_ context.Context, _ *mcp.CallToolRequest, input PasswordGenerateInput) (*mcp.CallToolResult, PasswordGenerateOutput, error) {
	var (
		pw  string
		err error
	)
	if input.Words > 0 {
		pw, err = s.generator.GenerateWords(input.Words)
	} else {
		opts := security.DefaultGeneratorOptions()
		if input.Length != 0 {
			opts.Length = input.Length
		}
		opts.Uppercase = boolOr(input.Uppercase, opts.Uppercase)
		opts.Lowercase = boolOr(input.Lowercase, opts.Lowercase)
		opts.Numbers = boolOr(input.Numbers, opts.Numbers)
		opts.Symbols = boolOr(input.Symbols, opts.Symbols)
		opts.ExcludeSimilar = boolOr(input.ExcludeSimilar, opts.ExcludeSimilar)
		pw, err = s.generator.Generate(opts)
	}
	if err != nil {
		return nil, PasswordGenerateOutput{}, err
	}
	return nil, PasswordGenerateOutput{
		Password: pw,
		Strength: security.EvaluateStrength(pw).String(),
	}, nil
}

func (s *Server) handlePasswordStrength(_ context.Context, _ *mcp.CallToolRequest, input PasswordStrengthInput) (*mcp.CallToolResult, PasswordStrengthOutput, error) {
	v := security.ValidatePasswordStrength(input.Password)
	return nil, PasswordStrengthOutput{
		Strength:        security.EvaluateStrength(input.Password).String(),
		Score:           security.StrengthScore(input.Password),
		ValidationScore: v.Score,
		Checks:          v.Checks,
		Length:          utf8.RuneCountInString(input.Password),
	}, nil
}

func (s *Server) handleVaultList(ctx context.Context, _ *mcp.CallToolRequest, input VaultListInput) (*mcp.CallToolResult, VaultListOutput, error) {
	var kind store.Kind
	if input.Kind != "" {
		k, err := store.ParseKind(input.Kind)
		if err != nil {
			return nil, VaultListOutput{}, err
		}
		kind = k
	}

	items, err := s.store.UserVaultItems(ctx)
	if err != nil {
		return nil, VaultListOutput{}, fmt.Errorf("failed to list vault items: %w", err)
	}

	out := VaultListOutput{Items: make([]VaultItemInfo, 0, len(items))}
	for _, it := range items {
		if kind != "" && it.Kind() != kind {
			continue
		}
		info := VaultItemInfo{
			ID:        it.ID,
			Title:     it.Title,
			Kind:      string(it.Kind()),
			HasNotes:  it.Notes != "",
			CreatedAt: it.CreatedAt.Format(time.RFC3339),
		}
		if it.UpdatedAt != nil {
			info.UpdatedAt = it.UpdatedAt.Format(time.RFC3339)
		}
		out.Items = append(out.Items, info)
	}
	return nil, out, nil
}

func (s *Server) handleVaultGetMasked(ctx context.Context, _ *mcp.CallToolRequest, input VaultGetMaskedInput) (*mcp.CallToolResult, VaultGetMaskedOutput, error) {
	if input.ID == "" {
		return nil, VaultGetMaskedOutput{}, errors.New("id is required")
	}

	it, err := s.store.GetVaultItem(ctx, input.ID)
	if err != nil {
		return nil, VaultGetMaskedOutput{}, fmt.Errorf("failed to get vault item: %w", err)
	}

	values := store.SecretValues(it.Fields)
	names := cli.MapKeys(values)

	out := VaultGetMaskedOutput{
		ID:     it.ID,
		Title:  it.Title,
		Kind:   string(it.Kind()),
		Fields: make([]MaskedField, 0, len(names)),
	}
	for _, name := range names {
		v := values[name]
		out.Fields = append(out.Fields, MaskedField{
			Name:        name,
			MaskedValue: cli.MaskValue(v),
			ValueLength: utf8.RuneCountInString(v),
		})
	}
	return nil, out, nil
}

func (s *Server) handleAlertsList(ctx context.Context, _ *mcp.CallToolRequest, input AlertsListInput) (*mcp.CallToolResult, AlertsListOutput, error) {
	alerts, err := s.store.UserSecurityAlerts(ctx)
	if err != nil {
		return nil, AlertsListOutput{}, fmt.Errorf("failed to list alerts: %w", err)
	}

	out := AlertsListOutput{Alerts: make([]AlertInfo, 0, len(alerts))}
	for _, a := range alerts {
		if input.UnresolvedOnly && a.Resolved {
			continue
		}
		out.Alerts = append(out.Alerts, AlertInfo{
			ID:          a.ID,
			Type:        string(a.Type),
			Title:       a.Title,
			Description: a.Description,
			Severity:    string(a.Severity),
			Timestamp:   a.Timestamp.Format(time.RFC3339),
			Resolved:    a.Resolved,
		})
	}
	return nil, out, nil
}

func (s *Server) handleSecurityReport(ctx context.Context, _ *mcp.CallToolRequest, _ SecurityReportInput) (*mcp.CallToolResult, SecurityReportOutput, error) {
	items, err := s.store.UserVaultItems(ctx)
	if err != nil {
		return nil, SecurityReportOutput{}, fmt.Errorf("failed to list vault items: %w", err)
	}
	alerts, err := s.store.UserSecurityAlerts(ctx)
	if err != nil {
		return nil, SecurityReportOutput{}, fmt.Errorf("failed to list alerts: %w", err)
	}
	hasPIN, err := s.store.HasVaultPIN(ctx)
	if err != nil {
		return nil, SecurityReportOutput{}, fmt.Errorf("failed to read PIN status: %w", err)
	}

	report, err := security.NewCalculator().Report(security.VaultSnapshot{
		Items:  items,
		HasPIN: hasPIN,
		Alerts: alerts,
	})
	if err != nil {
		return nil, SecurityReportOutput{}, err
	}

	out := SecurityReportOutput{
		Overall:     report.Overall,
		Strength:    report.Components.StrengthScore,
		Uniqueness:  report.Components.UniquenessScore,
		Expiration:  report.Components.ExpirationScore,
		Protection:  report.Components.ProtectionScore,
		Issues:      make([]IssueInfo, 0, len(report.Issues)),
		Suggestions: nonNil(report.Suggestions),
	}
	for _, issue := range report.Issues {
		out.Issues = append(out.Issues, IssueInfo{
			Type:        string(issue.Type),
			Severity:    string(issue.Severity),
			Description: issue.Description,
		})
	}
	return nil, out, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
