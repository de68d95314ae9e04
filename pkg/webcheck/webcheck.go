// Package webcheck rates a URL with static heuristics: known malicious
// domains, brand-impersonation tokens, scam keywords, missing TLS, domain age
// and throwaway TLDs. No network request is made.
package webcheck

import (
	"context"
	"math/rand/v2"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Status buckets a risk score.
type Status string

const (
	StatusSafe      Status = "safe"
	StatusWarning   Status = "warning"
	StatusDangerous Status = "dangerous"
)

// Reputation is a coarse label derived from the clamped score.
type Reputation string

const (
	ReputationGood    Reputation = "good"
	ReputationNeutral Reputation = "neutral"
	ReputationBad     Reputation = "bad"
)

// Score thresholds and rule weights.
const (
	DangerousThreshold = 70
	WarningThreshold   = 40
	MaxScore           = 100

	weightMaliciousDomain = 80
	weightPhishingToken   = 60
	weightScamKeyword     = 40
	weightNoTLS           = 30
	weightVeryNewDomain   = 25
	weightRecentDomain    = 15
	weightSuspiciousTLD   = 20

	veryNewDomainDays = 30
	recentDomainDays  = 90
)

// Threat labels reported in Result.Threats.
const (
	ThreatMaliciousDomain = "Known Malicious Domain"
	ThreatPhishing        = "Phishing Pattern Detected"
	ThreatSuspicious      = "Suspicious Content"
	ThreatNoTLS           = "No SSL Certificate"
	ThreatVeryNewDomain   = "Very New Domain"
	ThreatRecentDomain    = "Recently Created Domain"
	ThreatSuspiciousTLD   = "Suspicious Domain Extension"
)

var (
	maliciousDomains = []string{
		"phishing-bank.com",
		"fake-paypal.net",
		"scam-crypto.org",
		"malware-download.com",
		"suspicious-login.net",
	}

	phishingTokens = []string{
		"payp4l", "g00gle", "micr0soft", "amaz0n", "fac3book",
		"bank-login", "secure-verify", "account-suspended",
		"urgent-action", "verify-now", "suspended-account",
	}

	scamKeywords = []string{
		"free-money", "get-rich", "crypto-giveaway", "bitcoin-generator",
		"hack-password", "download-crack", "free-premium",
	}

	suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf"}
)

// Details carries the individual signals behind a score.
type Details struct {
	SSL                bool       `json:"ssl"`
	DomainAge          int        `json:"domainAge"`
	Reputation         Reputation `json:"reputation"`
	MalwareDetected    bool       `json:"malwareDetected"`
	PhishingIndicators []string   `json:"phishingIndicators"`
}

// Result is the outcome of one check.
type Result struct {
	URL         string    `json:"url"`
	Status      Status    `json:"status"`
	RiskScore   int       `json:"riskScore"`
	Threats     []string  `json:"threats"`
	Details     Details   `json:"details"`
	LastChecked time.Time `json:"lastChecked"`
}

// DomainAgeSource reports a domain's age in days.
type DomainAgeSource interface {
	DomainAge(host string) int
}

// DomainAgeFunc adapts a function to DomainAgeSource.
type DomainAgeFunc func(host string) int

func (f DomainAgeFunc) DomainAge(host string) int { return f(host) }

// FixedDomainAge reports the same age for every host.
type FixedDomainAge int

func (a FixedDomainAge) DomainAge(string) int { return int(a) }

// RandomDomainAge simulates a lookup with a uniform age in [0, 3000) days.
// Repeated checks of the same URL can therefore score differently.
type RandomDomainAge struct{}

func (RandomDomainAge) DomainAge(string) int { return rand.IntN(3000) }

// Option configures a Checker.
type Option func(*Checker)

// WithDomainAge sets the domain age source.
func WithDomainAge(src DomainAgeSource) Option {
	return func(c *Checker) { c.ages = src }
}

// WithDelay makes Check wait d before scoring, imitating a remote lookup.
func WithDelay(d time.Duration) Option {
	return func(c *Checker) { c.delay = d }
}

// WithClock sets the time source used for Result.LastChecked.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// Checker scores URLs. It is safe for concurrent use if its DomainAgeSource is.
type Checker struct {
	ages  DomainAgeSource
	delay time.Duration
	now   func() time.Time
}

// New returns a Checker with random domain ages and no delay.
func New(opts ...Option) *Checker {
	c := &Checker{
		ages: RandomDomainAge{},
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check scores rawURL. It only fails when ctx ends during the configured delay.
func (c *Checker) Check(ctx context.Context, rawURL string) (*Result, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return c.Score(rawURL), nil
}

// Score applies the rules to rawURL without any delay.
func (c *Checker) Score(rawURL string) *Result {
	host := ExtractHost(rawURL)
	lowered := strings.ToLower(host)

	score := 0
	threats := []string{}
	indicators := []string{}

	if slices.ContainsFunc(maliciousDomains, func(d string) bool { return strings.Contains(lowered, d) }) {
		score += weightMaliciousDomain
		threats = append(threats, ThreatMaliciousDomain)
	}

	for _, token := range phishingTokens {
		if strings.Contains(lowered, token) {
			score += weightPhishingToken
			threats = append(threats, ThreatPhishing)
			indicators = append(indicators, token)
		}
	}

	for _, kw := range scamKeywords {
		if strings.Contains(lowered, kw) {
			score += weightScamKeyword
			threats = append(threats, ThreatSuspicious)
		}
	}

	hasTLS := strings.HasPrefix(rawURL, "https://")
	if !hasTLS {
		score += weightNoTLS
		threats = append(threats, ThreatNoTLS)
	}

	age := c.ages.DomainAge(host)
	switch {
	case age < veryNewDomainDays:
		score += weightVeryNewDomain
		threats = append(threats, ThreatVeryNewDomain)
	case age < recentDomainDays:
		score += weightRecentDomain
		threats = append(threats, ThreatRecentDomain)
	}

	if slices.ContainsFunc(suspiciousTLDs, func(tld string) bool { return strings.HasSuffix(lowered, tld) }) {
		score += weightSuspiciousTLD
		threats = append(threats, ThreatSuspiciousTLD)
	}

	status := ClassifyScore(score)
	score = clamp(score)

	return &Result{
		URL:       rawURL,
		Status:    status,
		RiskScore: score,
		Threats:   threats,
		Details: Details{
			SSL:                hasTLS,
			DomainAge:          age,
			Reputation:         reputation(score),
			MalwareDetected:    slices.Contains(threats, ThreatMaliciousDomain),
			PhishingIndicators: indicators,
		},
		LastChecked: c.now(),
	}
}

// ClassifyScore buckets a score: 70 and above is dangerous, 40 and above is a
// warning, anything lower is safe.
func ClassifyScore(score int) Status {
	switch {
	case score >= DangerousThreshold:
		return StatusDangerous
	case score >= WarningThreshold:
		return StatusWarning
	default:
		return StatusSafe
	}
}

func reputation(score int) Reputation {
	switch {
	case score > 60:
		return ReputationBad
	case score > 30:
		return ReputationNeutral
	default:
		return ReputationGood
	}
}

func clamp(score int) int {
	return max(0, min(score, MaxScore))
}

// ExtractHost returns the lower-cased hostname of rawURL. Scheme-less input is
// read as https; input that still cannot be parsed is returned unchanged.
func ExtractHost(rawURL string) string {
	candidate := rawURL
	if !strings.HasPrefix(rawURL, "http") {
		candidate = "https://" + rawURL
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}

// Recommendations returns user advice for res.
func Recommendations(res *Result) []string {
	var recs []string
	if !res.Details.SSL {
		recs = append(recs, "Avoid entering sensitive information on non-HTTPS sites")
	}
	if res.Details.DomainAge < veryNewDomainDays {
		recs = append(recs, "Be cautious with very new domains")
	}
	if len(res.Details.PhishingIndicators) > 0 {
		recs = append(recs, "This site may be impersonating a legitimate service")
	}
	if res.RiskScore > DangerousThreshold {
		recs = append(recs,
			"Do not enter any personal information on this site",
			"Consider reporting this site to security authorities")
	}
	return recs
}
