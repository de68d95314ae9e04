// Package cli holds helpers shared by the sentrivault commands.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forest6511/sentrivault/pkg/store"
)

// ErrNoMatch is returned when a selector matches no item.
var ErrNoMatch = errors.New("no vault items match")

// ErrAmbiguous is returned by SelectOne when a selector matches several items.
var ErrAmbiguous = errors.New("selector matches more than one vault item")

// SelectItems resolves selector against items. An exact ID match wins; a
// selector containing glob characters (*?[) is matched case-insensitively
// against titles; anything else must equal a title, ignoring case.
func SelectItems(selector string, items []store.VaultItem) ([]store.VaultItem, error) {
	if selector == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrNoMatch)
	}
	for _, it := range items {
		if it.ID == selector {
			return []store.VaultItem{it}, nil
		}
	}

	pattern := strings.ToLower(selector)
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", selector, err)
	}
	hasGlob := strings.ContainsAny(pattern, "*?[")

	var matches []store.VaultItem
	for _, it := range items {
		title := strings.ToLower(it.Title)
		if hasGlob {
			if ok, _ := filepath.Match(pattern, title); ok {
				matches = append(matches, it)
			}
		} else if title == pattern {
			matches = append(matches, it)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w '%s'", ErrNoMatch, selector)
	}
	return matches, nil
}

// SelectOne is SelectItems restricted to a single result.
func SelectOne(selector string, items []store.VaultItem) (*store.VaultItem, error) {
	matches, err := SelectItems(selector, items)
	if err != nil {
		return nil, err
	}
	if len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, it := range matches {
			ids[i] = it.ID
		}
		return nil, fmt.Errorf("%w '%s': %s", ErrAmbiguous, selector, strings.Join(ids, ", "))
	}
	return &matches[0], nil
}

// SortByTitle returns a copy of items ordered by title, then ID.
func SortByTitle(items []store.VaultItem) []store.VaultItem {
	sorted := make([]store.VaultItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := strings.ToLower(sorted[i].Title), strings.ToLower(sorted[j].Title)
		if a != b {
			return a < b
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// MapKeys extracts keys from a map and returns them sorted.
func MapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
