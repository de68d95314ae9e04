// Package security generates passwords, rates their strength and reports on
// the overall health of a user's vault.
package security

import (
	"unicode/utf8"
)

// Strength is a bucketed password rating.
type Strength int

const (
	StrengthWeak Strength = iota
	StrengthMedium
	StrengthStrong
	StrengthVeryStrong
)

// String returns the display label.
func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "Weak"
	case StrengthMedium:
		return "Medium"
	case StrengthStrong:
		return "Strong"
	case StrengthVeryStrong:
		return "Very Strong"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the label so JSON output reads "Very Strong" rather than 3.
func (s Strength) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Points returns the score contribution used by the vault health report:
// Weak=0, Medium=8, Strong=17, Very Strong=25.
func (s Strength) Points() int {
	switch s {
	case StrengthMedium:
		return 8
	case StrengthStrong:
		return 17
	case StrengthVeryStrong:
		return 25
	default:
		return 0
	}
}

// characterClasses reports which ASCII classes appear in pw. Anything that is
// not an ASCII letter or digit counts as a symbol.
type characterClasses struct {
	lower, upper, digit, symbol bool
}

func classify(pw string) characterClasses {
	var c characterClasses
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= '0' && r <= '9':
			c.digit = true
		default:
			c.symbol = true
		}
	}
	return c
}

// StrengthScore awards one point each for length ≥ 8, length ≥ 12 and the
// presence of lowercase, uppercase, digit and symbol characters (0..6).
// Length is counted in characters.
func StrengthScore(pw string) int {
	n := utf8.RuneCountInString(pw)
	c := classify(pw)
	score := 0
	for _, ok := range []bool{n >= 8, n >= 12, c.lower, c.upper, c.digit, c.symbol} {
		if ok {
			score++
		}
	}
	return score
}

// EvaluateStrength buckets StrengthScore: up to 2 is Weak, up to 4 Medium,
// 5 Strong and 6 Very Strong.
func EvaluateStrength(pw string) Strength {
	switch score := StrengthScore(pw); {
	case score <= 2:
		return StrengthWeak
	case score <= 4:
		return StrengthMedium
	case score <= 5:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}

// Checks lists which criteria a password satisfied.
type Checks struct {
	Length    bool `json:"length"`
	Uppercase bool `json:"uppercase"`
	Lowercase bool `json:"lowercase"`
	Numbers   bool `json:"numbers"`
	Symbols   bool `json:"symbols"`
}

// Validation is the result of ValidatePasswordStrength.
type Validation struct {
	Score    int      `json:"score"`
	Strength Strength `json:"strength"`
	Checks   Checks   `json:"checks"`
}

// ValidatePasswordStrength gives 20 points for each of five checks: length ≥ 8,
// uppercase, lowercase, digit, symbol. 80 and above is Strong, 60 and above
// Medium, anything lower Weak. It never reports Very Strong.
func ValidatePasswordStrength(pw string) Validation {
	c := classify(pw)
	checks := Checks{
		Length:    utf8.RuneCountInString(pw) >= 8,
		Uppercase: c.upper,
		Lowercase: c.lower,
		Numbers:   c.digit,
		Symbols:   c.symbol,
	}

	score := 0
	for _, ok := range []bool{checks.Length, checks.Uppercase, checks.Lowercase, checks.Numbers, checks.Symbols} {
		if ok {
			score += 20
		}
	}

	v := Validation{Score: score, Checks: checks}
	switch {
	case score >= 80:
		v.Strength = StrengthStrong
	case score >= 60:
		v.Strength = StrengthMedium
	default:
		v.Strength = StrengthWeak
	}
	return v
}

// TokenStrength rates machine-generated secrets (API keys, private keys) by
// length alone: 32+ Very Strong, 20+ Strong, 16+ Medium, otherwise Weak.
func TokenStrength(token string) Strength {
	switch n := len(token); {
	case n >= 32:
		return StrengthVeryStrong
	case n >= 20:
		return StrengthStrong
	case n >= 16:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}
