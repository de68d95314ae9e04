package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forest6511/sentrivault/pkg/webcheck"
)

// AlertType classifies a security alert.
type AlertType string

const (
	AlertBreach     AlertType = "breach"
	AlertLogin      AlertType = "login"
	AlertPassword   AlertType = "password"
	AlertSuspicious AlertType = "suspicious"
)

// Severity ranks a security alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityAlert is a notification raised for one user.
type SecurityAlert struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Type        AlertType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location,omitempty"`
	Resolved    bool      `json:"resolved"`
}

// AlertInput is the caller-supplied part of a new alert.
type AlertInput struct {
	Type        AlertType
	Title       string
	Description string
	Severity    Severity
	Location    string
}

func (in AlertInput) validate() error {
	switch in.Type {
	case AlertBreach, AlertLogin, AlertPassword, AlertSuspicious:
	default:
		return fmt.Errorf("%w: unknown alert type %q", ErrInvalidInput, in.Type)
	}
	switch in.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, in.Severity)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: alert title is required", ErrInvalidInput)
	}
	return nil
}

// AddSecurityAlert raises an unresolved alert for the current user.
func (s *Store) AddSecurityAlert(ctx context.Context, in AlertInput) (*SecurityAlert, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var alert SecurityAlert
	err := s.mutate(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		alert = t.addAlert(u.ID, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (t *txn) addAlert(userID string, in AlertInput) SecurityAlert {
	alert := SecurityAlert{
		ID:          t.s.newID(),
		UserID:      userID,
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Timestamp:   t.s.now(),
		Location:    in.Location,
	}
	t.doc.SecurityAlerts = append(t.doc.SecurityAlerts, alert)
	return alert
}

// UserSecurityAlerts returns the current user's alerts in insertion order.
func (s *Store) UserSecurityAlerts(ctx context.Context) ([]SecurityAlert, error) {
	var alerts []SecurityAlert
	err := s.view(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		alerts = []SecurityAlert{}
		for _, a := range t.doc.SecurityAlerts {
			if a.UserID == u.ID {
				alerts = append(alerts, a)
			}
		}
		return nil
	})
	return alerts, err
}

// ResolveSecurityAlert marks one of the current user's alerts resolved.
// Resolving is one-way; resolving twice succeeds without logging again.
func (s *Store) ResolveSecurityAlert(ctx context.Context, id string) error {
	return s.mutate(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		for i := range t.doc.SecurityAlerts {
			a := &t.doc.SecurityAlerts[i]
			if a.ID != id || a.UserID != u.ID {
				continue
			}
			if !a.Resolved {
				a.Resolved = true
				t.logActivity(u.ID, ActionAlertResolve, "Resolved security alert: "+a.Title, "")
			}
			return nil
		}
		return ErrAlertNotFound
	})
}

// RecordWebsiteCheck logs a website check for the current user and raises a
// high-severity alert when the site was rated dangerous. The returned alert is
// nil for safe and warning results.
func (s *Store) RecordWebsiteCheck(ctx context.Context, res *webcheck.Result) (*SecurityAlert, error) {
	var raised *SecurityAlert
	err := s.mutate(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		t.logActivity(u.ID, ActionWebsiteCheck, "Checked website security: "+res.URL, "")
		if res.Status == webcheck.StatusDangerous {
			a := t.addAlert(u.ID, AlertInput{
				Type:  AlertSuspicious,
				Title: "Dangerous Website Detected",
				Description: fmt.Sprintf("Website %s was flagged as dangerous with risk score %d%%",
					res.URL, res.RiskScore),
				Severity: SeverityHigh,
			})
			raised = &a
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raised, nil
}
