package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// recentActivityCount is how many entries UserStats reports.
const recentActivityCount = 5

// ActivityLog is one append-only audit trail entry.
type ActivityLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
}

// AddActivityLog appends an entry for userID. It does not require a session.
func (s *Store) AddActivityLog(ctx context.Context, userID, action, details, location string) (*ActivityLog, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(action) == "" {
		return nil, fmt.Errorf("%w: user id and action are required", ErrInvalidInput)
	}

	var entry ActivityLog
	err := s.mutate(ctx, func(t *txn) error {
		entry = t.logActivity(userID, action, details, location)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UserActivityLogs returns the current user's entries, newest first.
func (s *Store) UserActivityLogs(ctx context.Context) ([]ActivityLog, error) {
	var logs []ActivityLog
	err := s.view(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		logs = userActivity(t.doc, u.ID)
		return nil
	})
	return logs, err
}

func userActivity(doc *Document, userID string) []ActivityLog {
	out := []ActivityLog{}
	for _, l := range doc.ActivityLogs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Stats summarises the current user's data.
type Stats struct {
	TotalVaultItems  int           `json:"totalVaultItems"`
	UnresolvedAlerts int           `json:"unreadAlerts"`
	RecentActivities []ActivityLog `json:"recentActivities"`
	VaultByKind      map[Kind]int  `json:"vaultByType"`
}

// UserStats computes dashboard totals for the current user.
func (s *Store) UserStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.view(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}

		stats.VaultByKind = make(map[Kind]int, len(Kinds))
		for _, k := range Kinds {
			stats.VaultByKind[k] = 0
		}
		for _, it := range filterItems(t.doc.VaultItems, u.ID) {
			stats.TotalVaultItems++
			stats.VaultByKind[it.Kind()]++
		}
		for _, a := range t.doc.SecurityAlerts {
			if a.UserID == u.ID && !a.Resolved {
				stats.UnresolvedAlerts++
			}
		}

		activity := userActivity(t.doc, u.ID)
		if len(activity) > recentActivityCount {
			activity = activity[:recentActivityCount]
		}
		stats.RecentActivities = activity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
