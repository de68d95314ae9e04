package security

import (
	"strconv"
	"time"

	"github.com/forest6511/sentrivault/pkg/store"
)

// HealthReport is the security assessment of one user's vault.
type HealthReport struct {
	// Overall is the sum of the four components (0-100).
	Overall     int             `json:"overall"`
	Components  ScoreComponents `json:"components"`
	Issues      []SecurityIssue `json:"issues"`
	Suggestions []string        `json:"suggestions"`
	// Limited is set when issues were truncated by WithIssueLimit.
	Limited bool `json:"limited"`
}

// ScoreComponents breaks the score into four categories of up to 25 points.
type ScoreComponents struct {
	StrengthScore   int `json:"strength"`
	UniquenessScore int `json:"uniqueness"`
	ExpirationScore int `json:"expiration"`
	ProtectionScore int `json:"protection"`
}

// IssueType identifies the type of security issue.
type IssueType string

const (
	IssueWeakPassword      IssueType = "weak"
	IssueDuplicatePassword IssueType = "duplicate"
	IssueExpiringSoon      IssueType = "expiring"
	IssueExpired           IssueType = "expired"
	IssueNoVaultPIN        IssueType = "no_vault_pin"
	IssueOpenAlert         IssueType = "open_alert"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// SecurityIssue is one finding. ItemTitle is only filled when the report was
// built with item details.
type SecurityIssue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	ItemID      string    `json:"item_id,omitempty"`
	ItemTitle   string    `json:"item_title,omitempty"`
	ItemTitles  []string  `json:"item_titles,omitempty"`
	FieldName   string    `json:"field_name,omitempty"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion,omitempty"`
}

// VaultSnapshot is everything the report looks at.
type VaultSnapshot struct {
	Items  []store.VaultItem
	HasPIN bool
	Alerts []store.SecurityAlert
}

// alertPenalty is deducted from the protection score per open high or
// critical alert.
const alertPenalty = 5

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithExpiryDays sets how many days ahead an expiry date counts as "soon".
func WithExpiryDays(days int) CalculatorOption {
	return func(c *Calculator) { c.expiryDays = days }
}

// WithIssueLimit caps weak and duplicate findings at n each (0 = unlimited).
func WithIssueLimit(n int) CalculatorOption {
	return func(c *Calculator) { c.issueLimit = n }
}

// WithItemDetails includes item ids and titles in issues.
func WithItemDetails(include bool) CalculatorOption {
	return func(c *Calculator) { c.includeItems = include }
}

// WithNow sets the reference time for expiry checks.
func WithNow(now func() time.Time) CalculatorOption {
	return func(c *Calculator) { c.now = now }
}

// Calculator computes vault health reports.
type Calculator struct {
	hmacKey      []byte // session-local key for duplicate detection
	expiryDays   int
	issueLimit   int
	includeItems bool
	now          func() time.Time
}

// NewCalculator returns a Calculator warning 30 days before expiry.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		expiryDays: 30,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report computes the health report for snap.
func (c *Calculator) Report(snap VaultSnapshot) (*HealthReport, error) {
	protection, protIssues := c.protectionScore(snap)

	if len(snap.Items) == 0 {
		issues := append([]SecurityIssue{}, protIssues...)
		return &HealthReport{
			Overall: 75 + protection,
			Components: ScoreComponents{
				StrengthScore:   25,
				UniquenessScore: 25,
				ExpirationScore: 25,
				ProtectionScore: protection,
			},
			Issues:      issues,
			Suggestions: c.suggestions(issues),
		}, nil
	}

	strength, weakIssues := c.strengthScore(snap.Items)
	uniqueness, dupIssues, err := c.uniquenessScore(snap.Items)
	if err != nil {
		return nil, err
	}
	expiration, expIssues := c.expirationScore(snap.Items)

	issues := make([]SecurityIssue, 0, len(weakIssues)+len(dupIssues)+len(expIssues)+len(protIssues))
	issues = append(issues, weakIssues...)
	issues = append(issues, dupIssues...)
	issues = append(issues, expIssues...)
	issues = append(issues, protIssues...)

	limited := false
	if c.issueLimit > 0 {
		issues, limited = c.applyLimit(issues)
	}

	return &HealthReport{
		Overall: strength + uniqueness + expiration + protection,
		Components: ScoreComponents{
			StrengthScore:   strength,
			UniquenessScore: uniqueness,
			ExpirationScore: expiration,
			ProtectionScore: protection,
		},
		Issues:      issues,
		Suggestions: c.suggestions(issues),
		Limited:     limited,
	}, nil
}

// strengthScore averages the strength points of every rated secret (0-25).
func (c *Calculator) strengthScore(items []store.VaultItem) (int, []SecurityIssue) {
	var issues []SecurityIssue
	total, rated := 0, 0

	for _, it := range items {
		for name, value := range store.SecretValues(it.Fields) {
			strength, ok := rateSecret(name, value)
			if !ok {
				continue
			}
			rated++
			total += strength.Points()

			if strength == StrengthWeak {
				issues = append(issues, c.withItem(SecurityIssue{
					Type:        IssueWeakPassword,
					Severity:    SeverityWarning,
					FieldName:   name,
					Description: "Secret has insufficient strength (" + formatLength(len([]rune(value))) + ")",
					Suggestion:  "Use 12+ characters mixing upper and lower case, digits and symbols",
				}, it))
			}
		}
	}

	if rated == 0 {
		return 25, issues
	}
	return min(total/rated, 25), issues
}

// uniquenessScore scales the share of distinct secret values to 0-25.
func (c *Calculator) uniquenessScore(items []store.VaultItem) (int, []SecurityIssue, error) {
	groups, err := c.FindDuplicates(items)
	if err != nil {
		return 0, nil, err
	}

	total := 0
	for _, it := range items {
		for name, value := range store.SecretValues(it.Fields) {
			if isComparableField(name) && normalizeValue(value) != "" {
				total++
			}
		}
	}
	if total == 0 {
		return 25, nil, nil
	}

	redundant := 0
	var issues []SecurityIssue
	for _, g := range groups {
		redundant += g.Count - 1
		issue := SecurityIssue{
			Type:        IssueDuplicatePassword,
			Severity:    SeverityWarning,
			Description: strconv.Itoa(g.Count) + " items share the same secret",
			Suggestion:  "Use a unique password for every account",
		}
		if c.includeItems {
			issue.ItemTitles = g.ItemTitles
		}
		issues = append(issues, issue)
	}

	unique := total - redundant
	return int(float64(unique) / float64(total) * 25), issues, nil
}

// expirationScore scales the share of unexpired cards and licenses to 0-25.
func (c *Calculator) expirationScore(items []store.VaultItem) (int, []SecurityIssue) {
	var issues []SecurityIssue
	now := c.now()
	warnAt := now.AddDate(0, 0, c.expiryDays)

	dated, valid := 0, 0
	for _, it := range items {
		expiresAt, ok := itemExpiry(it.Fields)
		if !ok {
			continue
		}
		dated++

		switch {
		case expiresAt.Before(now):
			issues = append(issues, c.withItem(SecurityIssue{
				Type:        IssueExpired,
				Severity:    SeverityCritical,
				Description: "Item has expired",
				Suggestion:  "Renew or remove the expired " + string(it.Kind()),
			}, it))
		case expiresAt.Before(warnAt):
			valid++
			days := int(expiresAt.Sub(now).Hours() / 24)
			issues = append(issues, c.withItem(SecurityIssue{
				Type:        IssueExpiringSoon,
				Severity:    SeverityWarning,
				Description: "Item expires in " + formatDays(days),
				Suggestion:  "Plan the renewal before it lapses",
			}, it))
		default:
			valid++
		}
	}

	if dated == 0 {
		return 25, issues
	}
	return int(float64(valid) / float64(dated) * 25), issues
}

// protectionScore is 25 with a vault PIN, 10 without, minus a penalty per open
// high or critical alert.
func (c *Calculator) protectionScore(snap VaultSnapshot) (int, []SecurityIssue) {
	var issues []SecurityIssue
	score := 25
	if !snap.HasPIN {
		score = 10
		issues = append(issues, SecurityIssue{
			Type:        IssueNoVaultPIN,
			Severity:    SeverityWarning,
			Description: "No vault PIN is set",
			Suggestion:  "Set a vault PIN to protect item details",
		})
	}
	for _, a := range snap.Alerts {
		if a.Resolved || (a.Severity != store.SeverityHigh && a.Severity != store.SeverityCritical) {
			continue
		}
		score -= alertPenalty
		issues = append(issues, SecurityIssue{
			Type:        IssueOpenAlert,
			Severity:    SeverityCritical,
			Description: "Unresolved alert: " + a.Title,
			Suggestion:  "Review and resolve the alert",
		})
	}
	return max(score, 0), issues
}

func (c *Calculator) withItem(issue SecurityIssue, it store.VaultItem) SecurityIssue {
	if c.includeItems {
		issue.ItemID = it.ID
		issue.ItemTitle = it.Title
	}
	return issue
}

// applyLimit truncates weak and duplicate findings.
func (c *Calculator) applyLimit(issues []SecurityIssue) ([]SecurityIssue, bool) {
	limited := false
	weak, dup := 0, 0
	var out []SecurityIssue

	for _, issue := range issues {
		switch issue.Type {
		case IssueWeakPassword:
			if weak >= c.issueLimit {
				limited = true
				continue
			}
			weak++
		case IssueDuplicatePassword:
			if dup >= c.issueLimit {
				limited = true
				continue
			}
			dup++
		}
		out = append(out, issue)
	}
	return out, limited
}

func (c *Calculator) suggestions(issues []SecurityIssue) []string {
	seen := make(map[IssueType]bool)
	for _, issue := range issues {
		seen[issue.Type] = true
	}

	suggestions := []string{}
	if seen[IssueWeakPassword] {
		suggestions = append(suggestions, "Replace weak passwords with generated ones")
	}
	if seen[IssueDuplicatePassword] {
		suggestions = append(suggestions, "Replace reused passwords with unique values")
	}
	if seen[IssueExpired] {
		suggestions = append(suggestions, "Renew or remove expired cards and licenses")
	}
	if seen[IssueExpiringSoon] {
		suggestions = append(suggestions, "Renew expiring cards and licenses")
	}
	if seen[IssueNoVaultPIN] {
		suggestions = append(suggestions, "Set a vault PIN")
	}
	if seen[IssueOpenAlert] {
		suggestions = append(suggestions, "Resolve open high-severity alerts")
	}
	return suggestions
}

// rateSecret rates a SecretValues entry. CVVs and seed phrases are not rated.
func rateSecret(name, value string) (Strength, bool) {
	if value == "" {
		return StrengthWeak, false
	}
	switch name {
	case "password", "wifiPassword", "serverPassword":
		return EvaluateStrength(value), true
	case "apiKey", "privateKey":
		return TokenStrength(value), true
	default:
		return StrengthWeak, false
	}
}

// itemExpiry returns the first instant an item is no longer valid. Cards use
// MM/YY or MM/YYYY and stay valid through the month; licenses use an ISO date.
func itemExpiry(f store.ItemFields) (time.Time, bool) {
	switch v := f.(type) {
	case store.CardFields:
		for _, layout := range []string{"01/06", "01/2006", "2006-01"} {
			if t, err := time.Parse(layout, v.ExpiryDate); err == nil {
				return t.AddDate(0, 1, 0), true
			}
		}
	case store.LicenseFields:
		if t, err := time.Parse("2006-01-02", v.ExpiryDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatLength(n int) string {
	if n == 1 {
		return "1 character"
	}
	return strconv.Itoa(n) + " characters"
}

func formatDays(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "1 day"
	default:
		return strconv.Itoa(days) + " days"
	}
}
