package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Input validation limits.
const (
	MaxTitleLength = 256
	MaxNotesSize   = 10 * 1024
	MaxURLLength   = 2048
)

// ItemInput is the caller-supplied part of a new vault item.
type ItemInput struct {
	Title  string
	Notes  string
	Fields ItemFields
}

// ItemUpdate describes changes to an existing item. Nil pointers and a nil
// Fields leave the current value untouched. Fields must keep the item's kind.
type ItemUpdate struct {
	Title  *string
	Notes  *string
	Fields ItemFields
}

// AddVaultItem creates an item owned by the current user.
func (s *Store) AddVaultItem(ctx context.Context, in ItemInput) (*VaultItem, error) {
	if err := validateItem(in.Title, in.Notes, in.Fields); err != nil {
		return nil, err
	}

	var item VaultItem
	err := s.mutate(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		item = VaultItem{
			ID:        s.newID(),
			UserID:    u.ID,
			Title:     in.Title,
			Notes:     in.Notes,
			CreatedAt: s.now(),
			Fields:    in.Fields,
		}
		t.doc.VaultItems = append(t.doc.VaultItems, item)
		t.logActivity(u.ID, ActionVaultAdd, fmt.Sprintf("Added %s: %s", item.Kind(), item.Title), "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UserVaultItems returns the current user's items in insertion order.
func (s *Store) UserVaultItems(ctx context.Context) ([]VaultItem, error) {
	var items []VaultItem
	err := s.view(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		items = filterItems(t.doc.VaultItems, u.ID)
		return nil
	})
	return items, err
}

// GetVaultItem returns one of the current user's items.
func (s *Store) GetVaultItem(ctx context.Context, id string) (*VaultItem, error) {
	var item VaultItem
	err := s.view(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		i := findItem(t.doc.VaultItems, id, u.ID)
		if i < 0 {
			return ErrItemNotFound
		}
		item = t.doc.VaultItems[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateVaultItem applies upd to one of the current user's items.
func (s *Store) UpdateVaultItem(ctx context.Context, id string, upd ItemUpdate) (*VaultItem, error) {
	var updated VaultItem
	err := s.mutate(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		i := findItem(t.doc.VaultItems, id, u.ID)
		if i < 0 {
			return ErrItemNotFound
		}

		next := t.doc.VaultItems[i]
		if upd.Title != nil {
			next.Title = *upd.Title
		}
		if upd.Notes != nil {
			next.Notes = *upd.Notes
		}
		if upd.Fields != nil {
			if upd.Fields.Kind() != next.Kind() {
				return fmt.Errorf("%w: item is %s, got %s", ErrKindMismatch, next.Kind(), upd.Fields.Kind())
			}
			next.Fields = upd.Fields
		}
		if err := validateItem(next.Title, next.Notes, next.Fields); err != nil {
			return err
		}
		now := s.now()
		next.UpdatedAt = &now

		t.doc.VaultItems[i] = next
		updated = next
		t.logActivity(u.ID, ActionVaultUpdate, "Updated vault item: "+next.Title, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteVaultItem removes one of the current user's items.
func (s *Store) DeleteVaultItem(ctx context.Context, id string) error {
	return s.mutate(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		i := findItem(t.doc.VaultItems, id, u.ID)
		if i < 0 {
			return ErrItemNotFound
		}
		item := t.doc.VaultItems[i]
		t.doc.VaultItems = append(t.doc.VaultItems[:i], t.doc.VaultItems[i+1:]...)
		t.logActivity(u.ID, ActionVaultDelete, fmt.Sprintf("Deleted %s: %s", item.Kind(), item.Title), "")
		return nil
	})
}

func filterItems(all []VaultItem, userID string) []VaultItem {
	out := []VaultItem{}
	for _, it := range all {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out
}

func findItem(all []VaultItem, id, userID string) int {
	for i, it := range all {
		if it.ID == id && it.UserID == userID {
			return i
		}
	}
	return -1
}

func validateItem(title, notes string, fields ItemFields) error {
	if fields == nil {
		return fmt.Errorf("%w: item fields are required", ErrInvalidInput)
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, MaxTitleLength)
	}
	if len(notes) > MaxNotesSize {
		return fmt.Errorf("%w: notes exceed %d bytes", ErrInvalidInput, MaxNotesSize)
	}

	var rawURL string
	switch f := fields.(type) {
	case PasswordFields:
		rawURL = f.URL
	case KeyFields:
		rawURL = f.ServiceURL
	}
	if rawURL != "" {
		if len(rawURL) > MaxURLLength {
			return fmt.Errorf("%w: url exceeds %d characters", ErrInvalidInput, MaxURLLength)
		}
		if _, err := url.Parse(rawURL); err != nil {
			return fmt.Errorf("%w: invalid url: %v", ErrInvalidInput, err)
		}
	}
	return nil
}
