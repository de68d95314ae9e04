package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forest6511/sentrivault/pkg/crypto"
	"github.com/forest6511/sentrivault/pkg/storage"
)

// Activity action names.
const (
	ActionAccountCreated = "account_created"
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionVaultPINSet    = "vault_pin_set"
	ActionVaultAdd       = "vault_add"
	ActionVaultUpdate    = "vault_update"
	ActionVaultDelete    = "vault_delete"
	ActionAlertResolve   = "alert_resolve"
	ActionWebsiteCheck   = "website_check"
	ActionVaultImport    = "vault_import"
)

// User is an account record. Password and VaultPIN hold HashSecret digests.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Password      string    `json:"password"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	VaultPIN      string    `json:"vaultPin,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LastLogin     time.Time `json:"lastLogin"`
}

// HasVaultPIN reports whether a PIN has been set.
func (u User) HasVaultPIN() bool {
	return u.VaultPIN != ""
}

// CreateUser registers a new account and signs it in. The email must not be
// in use; on ErrDuplicateEmail nothing is written.
func (s *Store) CreateUser(ctx context.Context, email, name, password, walletAddress string) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	var created User
	err := s.mutate(ctx, func(t *txn) error {
		for _, u := range t.doc.Users {
			if u.Email == email {
				return ErrDuplicateEmail
			}
		}

		now := s.now()
		created = User{
			ID:            s.newID(),
			Email:         email,
			Name:          name,
			Password:      crypto.HashSecret(password),
			WalletAddress: walletAddress,
			CreatedAt:     now,
			LastLogin:     now,
		}
		t.doc.Users = append(t.doc.Users, created)
		id := created.ID
		t.doc.CurrentUser = &id
		t.logActivity(created.ID, ActionAccountCreated, "Account created successfully", "")
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.setCurrentUserPointer(ctx, created.ID); err != nil {
		return nil, err
	}
	return &created, nil
}

// AuthenticateUser signs in the account matching email and password.
// A mismatch returns ErrInvalidCredentials and changes nothing.
func (s *Store) AuthenticateUser(ctx context.Context, email, password string) (*User, error) {
	var found User
	err := s.mutate(ctx, func(t *txn) error {
		for i := range t.doc.Users {
			u := &t.doc.Users[i]
			if u.Email != email || !crypto.MatchSecret(password, u.Password) {
				continue
			}
			u.LastLogin = s.now()
			id := u.ID
			t.doc.CurrentUser = &id
			t.logActivity(u.ID, ActionLogin, "User logged in successfully", "")
			found = *u
			return nil
		}
		return ErrInvalidCredentials
	})
	if err != nil {
		return nil, err
	}

	if err := s.setCurrentUserPointer(ctx, found.ID); err != nil {
		return nil, err
	}
	return &found, nil
}

// CurrentUser returns the signed-in user. It returns ErrNotLoggedIn when no
// pointer is set and ErrStaleSession when the pointer names a missing user.
func (s *Store) CurrentUser(ctx context.Context) (*User, error) {
	var current User
	err := s.view(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		current = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &current, nil
}

// Logout signs the current user out. Logging out with no session is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	err := s.mutate(ctx, func(t *txn) error {
		if u, err := t.currentUser(); err == nil {
			t.logActivity(u.ID, ActionLogout, "User logged out", "")
		}
		t.doc.CurrentUser = nil
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, storage.KeyCurrentUser); err != nil {
		return fmt.Errorf("store: failed to clear current user: %w", err)
	}
	return nil
}

// SetVaultPIN stores the digest of pin on the current user.
func (s *Store) SetVaultPIN(ctx context.Context, pin string) error {
	if pin == "" {
		return fmt.Errorf("%w: pin is required", ErrInvalidInput)
	}
	return s.mutate(ctx, func(t *txn) error {
		u, err := t.currentUser()
		if err != nil {
			return err
		}
		u.VaultPIN = crypto.HashSecret(pin)
		t.logActivity(u.ID, ActionVaultPINSet, "Vault PIN has been set", "")
		return nil
	})
}

// VerifyVaultPIN reports whether pin matches the current user's PIN. It is
// false when no PIN has been set.
func (s *Store) VerifyVaultPIN(ctx context.Context, pin string) (bool, error) {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return false, err
	}
	if !u.HasVaultPIN() {
		return false, nil
	}
	return crypto.MatchSecret(pin, u.VaultPIN), nil
}

// HasVaultPIN reports whether the current user has set a PIN.
func (s *Store) HasVaultPIN(ctx context.Context) (bool, error) {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return false, err
	}
	return u.HasVaultPIN(), nil
}

func (s *Store) setCurrentUserPointer(ctx context.Context, id string) error {
	if err := s.backend.Set(ctx, storage.KeyCurrentUser, id); err != nil {
		return fmt.Errorf("store: failed to record current user: %w", err)
	}
	return nil
}
