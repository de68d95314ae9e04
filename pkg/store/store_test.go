package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/sentrivault/pkg/crypto"
	"github.com/forest6511/sentrivault/pkg/storage"
	"github.com/forest6511/sentrivault/pkg/webcheck"
)

const testPassphrase = "test-passphrase"

// sharedSealer amortises the Argon2id derivation across tests.
var sharedSealer = crypto.NewSealer(testPassphrase)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type counterIDs struct {
	mu sync.Mutex
	n  int
}

func (c *counterIDs) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("id-%03d", c.n)
}

type recordedEntry struct {
	action   string
	metadata string
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recordedEntry
	err     error
}

func (r *fakeRecorder) Record(action string, _ any, metadata string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedEntry{action: action, metadata: metadata})
	return r.err
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *storage.MemoryBackend) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	clock := &tickingClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	ids := &counterIDs{}
	base := []Option{WithClock(clock.Now), WithIDGenerator(ids.Next)}
	return New(backend, sharedSealer, append(base, opts...)...), backend
}

func signUp(t *testing.T, s *Store, email string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "Test User", "hunter2", "")
	require.NoError(t, err)
	return u
}

func TestLoadCreatesEmptyDocument(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Users)
	assert.Empty(t, doc.VaultItems)
	assert.Nil(t, doc.CurrentUser)

	raw, ok, err := backend.Get(ctx, storage.KeyData)
	require.NoError(t, err)
	require.True(t, ok, "empty document should be persisted")
	assert.NotContains(t, raw, "users", "document must be sealed")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@example.com")

	_, err := s.AddVaultItem(ctx, ItemInput{
		Title:  "Mail",
		Fields: PasswordFields{Username: "a", Password: "p@ss", URL: "https://mail.example.com"},
	})
	require.NoError(t, err)

	before, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, before))
	after, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCorruptedDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("default returns ErrCorrupted", func(t *testing.T) {
		s, backend := newTestStore(t)
		require.NoError(t, backend.Set(ctx, storage.KeyData, "not-an-envelope"))

		_, err := s.Load(ctx)
		assert.ErrorIs(t, err, ErrCorrupted)

		_, err = s.CreateUser(ctx, "a@example.com", "A", "pw", "")
		assert.ErrorIs(t, err, ErrCorrupted)

		raw, _, _ := backend.Get(ctx, storage.KeyData)
		assert.Equal(t, "not-an-envelope", raw, "corrupted blob must not be overwritten")
	})

	t.Run("wrong passphrase is corruption", func(t *testing.T) {
		backend := storage.NewMemoryBackend()
		other := New(backend, crypto.NewSealer("another-passphrase"))
		_, err := other.Load(ctx)
		require.NoError(t, err)

		s := New(backend, sharedSealer)
		_, err = s.Load(ctx)
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("reset option starts empty", func(t *testing.T) {
		s, backend := newTestStore(t, WithResetOnCorruption(true))
		require.NoError(t, backend.Set(ctx, storage.KeyData, "garbage"))

		doc, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, doc.Users)

		signUp(t, s, "a@example.com")
		doc, err = s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, doc.Users, 1)
	})
}

func TestBackendFailure(t *testing.T) {
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.Close())
	s := New(backend, sharedSealer)

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.NotErrorIs(t, err, ErrCorrupted)
}

func TestCreateUser(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "a@example.com", "Alice", "hunter2", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, "0xabc", u.WalletAddress)
	assert.Equal(t, crypto.HashSecret("hunter2"), u.Password)
	assert.NotEqual(t, "hunter2", u.Password)
	assert.Equal(t, u.CreatedAt, u.LastLogin)

	ptr, ok, err := backend.Get(ctx, storage.KeyCurrentUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, u.ID, ptr)

	cur, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, u.ID, cur.ID)

	logs, err := s.UserActivityLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ActionAccountCreated, logs[0].Action)
	assert.Equal(t, SimulatedIP, logs[0].IPAddress)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@example.com")

	before, err := s.Load(ctx)
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "a@example.com", "Other", "pw", "")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	after, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCreateUserValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "  ", "A", "pw", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CreateUser(ctx, "a@example.com", "A", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthenticateUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	created := signUp(t, s, "a@example.com")
	require.NoError(t, s.Logout(ctx))

	t.Run("wrong password", func(t *testing.T) {
		before, err := s.Load(ctx)
		require.NoError(t, err)

		_, err = s.AuthenticateUser(ctx, "a@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.NotErrorIs(t, err, ErrNotLoggedIn)

		after, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		_, err = s.CurrentUser(ctx)
		assert.ErrorIs(t, err, ErrNotLoggedIn)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := s.AuthenticateUser(ctx, "nobody@example.com", "hunter2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("success", func(t *testing.T) {
		u, err := s.AuthenticateUser(ctx, "a@example.com", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
		assert.True(t, u.LastLogin.After(created.LastLogin))

		cur, err := s.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, created.ID, cur.ID)

		logs, err := s.UserActivityLogs(ctx)
		require.NoError(t, err)
		assert.Equal(t, ActionLogin, logs[0].Action)
	})
}

func TestSessionErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, err := s.CurrentUser(ctx)
		assert.ErrorIs(t, err, ErrNotLoggedIn)
		assert.NotErrorIs(t, err, ErrStaleSession)

		_, err = s.UserVaultItems(ctx)
		assert.ErrorIs(t, err, ErrNotLoggedIn)
		_, err = s.UserSecurityAlerts(ctx)
		assert.ErrorIs(t, err, ErrNotLoggedIn)
		_, err = s.UserStats(ctx)
		assert.ErrorIs(t, err, ErrNotLoggedIn)
	})

	t.Run("pointer to missing user", func(t *testing.T) {
		s, backend := newTestStore(t)
		require.NoError(t, backend.Set(ctx, storage.KeyCurrentUser, "ghost"))

		_, err := s.CurrentUser(ctx)
		assert.ErrorIs(t, err, ErrStaleSession)
		assert.ErrorIs(t, err, ErrNotLoggedIn)

		_, err = s.AddVaultItem(ctx, ItemInput{Title: "x", Fields: NoteFields{}})
		assert.ErrorIs(t, err, ErrStaleSession)
	})

	t.Run("plaintext pointer wins over document", func(t *testing.T) {
		s, backend := newTestStore(t)
		a := signUp(t, s, "a@example.com")
		b := signUp(t, s, "b@example.com")

		require.NoError(t, backend.Set(ctx, storage.KeyCurrentUser, a.ID))
		doc, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, doc.CurrentUser)
		assert.Equal(t, b.ID, *doc.CurrentUser)

		cur, err := s.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, a.ID, cur.ID)
	})

	t.Run("document pointer used when plaintext missing", func(t *testing.T) {
		s, backend := newTestStore(t)
		a := signUp(t, s, "a@example.com")
		require.NoError(t, backend.Delete(ctx, storage.KeyCurrentUser))

		cur, err := s.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, a.ID, cur.ID)
	})
}

func TestLogout(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()
	u := signUp(t, s, "a@example.com")

	require.NoError(t, s.Logout(ctx))

	_, ok, err := backend.Get(ctx, storage.KeyCurrentUser)
	require.NoError(t, err)
	assert.False(t, ok)
	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc.CurrentUser)

	var actions []string
	for _, l := range doc.ActivityLogs {
		if l.UserID == u.ID {
			actions = append(actions, l.Action)
		}
	}
	assert.Equal(t, []string{ActionAccountCreated, ActionLogout}, actions)

	// second logout is a no-op
	require.NoError(t, s.Logout(ctx))
	doc, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.ActivityLogs, 2)
}

func TestVaultPIN(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@example.com")

	has, err := s.HasVaultPIN(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	ok, err := s.VerifyVaultPIN(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok, "no PIN set must never verify")

	assert.ErrorIs(t, s.SetVaultPIN(ctx, ""), ErrInvalidInput)
	require.NoError(t, s.SetVaultPIN(ctx, "1234"))

	has, err = s.HasVaultPIN(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	ok, err = s.VerifyVaultPIN(ctx, "1234")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.VerifyVaultPIN(ctx, "4321")
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, crypto.HashSecret("1234"), u.VaultPIN)

	logs, err := s.UserActivityLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionVaultPINSet, logs[0].Action)
}

func TestVaultItemLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@example.com")

	item, err := s.AddVaultItem(ctx, ItemInput{
		Title:  "Home WiFi",
		Notes:  "router in the hallway",
		Fields: WifiFields{NetworkName: "home", WifiPassword: "s3cret", SecurityType: "WPA2"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindWifi, item.Kind())
	assert.Nil(t, item.UpdatedAt)

	got, err := s.GetVaultItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, got)

	title := "Office WiFi"
	updated, err := s.UpdateVaultItem(ctx, item.ID, ItemUpdate{
		Title:  &title,
		Fields: WifiFields{NetworkName: "office", WifiPassword: "n3w", SecurityType: "WPA3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Office WiFi", updated.Title)
	assert.Equal(t, "router in the hallway", updated.Notes, "unset fields are kept")
	require.NotNil(t, updated.UpdatedAt)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	_, err = s.UpdateVaultItem(ctx, item.ID, ItemUpdate{Fields: NoteFields{}})
	assert.ErrorIs(t, err, ErrKindMismatch)

	require.NoError(t, s.DeleteVaultItem(ctx, item.ID))
	_, err = s.GetVaultItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, s.DeleteVaultItem(ctx, item.ID), ErrItemNotFound)

	logs, err := s.UserActivityLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, ActionVaultDelete, logs[0].Action)
	assert.Equal(t, "Deleted wifi: Office WiFi", logs[0].Details)
	assert.Equal(t, ActionVaultUpdate, logs[1].Action)
	assert.Equal(t, "Updated vault item: Office WiFi", logs[1].Details)
	assert.Equal(t, ActionVaultAdd, logs[2].Action)
	assert.Equal(t, "Added wifi: Home WiFi", logs[2].Details)
}

func TestVaultItemValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@example.com")

	tests := []struct {
		name string
		in   ItemInput
	}{
		{"missing fields", ItemInput{Title: "x"}},
		{"blank title", ItemInput{Title: "   ", Fields: NoteFields{}}},
		{"long title", ItemInput{Title: string(make([]byte, MaxTitleLength+1)), Fields: NoteFields{}}},
		{"large notes", ItemInput{Title: "x", Notes: string(make([]byte, MaxNotesSize+1)), Fields: NoteFields{}}},
		{"bad url", ItemInput{Title: "x", Fields: PasswordFields{URL: "http://[::1"}}},
		{"long key url", ItemInput{Title: "x", Fields: KeyFields{ServiceURL: "https://" + string(make([]byte, MaxURLLength))}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddVaultItem(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	items, err := s.UserVaultItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOwnershipIsolation(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	a := signUp(t, s, "a@example.com")
	b := signUp(t, s, "b@example.com")

	use := func(u *User) {
		require.NoError(t, backend.Set(ctx, storage.KeyCurrentUser, u.ID))
	}

	var aItems, bItems []string
	for i := range 3 {
		use(a)
		it, err := s.AddVaultItem(ctx, ItemInput{Title: fmt.Sprintf("a-%d", i), Fields: NoteFields{}})
		require.NoError(t, err)
		aItems = append(aItems, it.ID)

		use(b)
		it, err = s.AddVaultItem(ctx, ItemInput{Title: fmt.Sprintf("b-%d", i), Fields: CardFields{CVV: "123"}})
		require.NoError(t, err)
		bItems = append(bItems, it.ID)
	}

	use(a)
	items, err := s.UserVaultItems(ctx)
	require.NoError(t, err)
	var ids []string
	for _, it := range items {
		assert.Equal(t, a.ID, it.UserID)
		ids = append(ids, it.ID)
	}
	assert.Equal(t, aItems, ids)

	_, err = s.GetVaultItem(ctx, bItems[0])
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, s.DeleteVaultItem(ctx, bItems[0]), ErrItemNotFound)
	title := "stolen"
	_, err = s.UpdateVaultItem(ctx, bItems[0], ItemUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrItemNotFound)

	logs, err := s.UserActivityLogs(ctx)
	require.NoError(t, err)
	for _, l := range logs {
		assert.Equal(t, a.ID, l.UserID)
	}

	use(b)
	stats, err := s.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalVaultItems)
	assert.Equal(t, 3, stats.VaultByKind[KindCard])
	assert.Equal(t, 0, stats.VaultByKind[KindNote])
}

func TestSecurityAlerts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@example.com")

	_, err := s.AddSecurityAlert(ctx, AlertInput{Type: "bogus", Title: "x", Severity: SeverityLow})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.AddSecurityAlert(ctx, AlertInput{Type: AlertLogin, Title: "x", Severity: "extreme"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	first, err := s.AddSecurityAlert(ctx, AlertInput{
		Type: AlertLogin, Title: "New sign-in", Description: "from Berlin", Severity: SeverityMedium,
	})
	require.NoError(t, err)
	assert.False(t, first.Resolved)
	second, err := s.AddSecurityAlert(ctx, AlertInput{
		Type: AlertBreach, Title: "Breach", Severity: SeverityCritical,
	})
	require.NoError(t, err)

	alerts, err := s.UserSecurityAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, first.ID, alerts[0].ID)
	assert.Equal(t, second.ID, alerts[1].ID)

	require.NoError(t, s.ResolveSecurityAlert(ctx, first.ID))
	require.NoError(t, s.ResolveSecurityAlert(ctx, first.ID))
	assert.ErrorIs(t, s.ResolveSecurityAlert(ctx, "missing"), ErrAlertNotFound)

	alerts, err = s.UserSecurityAlerts(ctx)
	require.NoError(t, err)
	assert.True(t, alerts[0].Resolved)
	assert.False(t, alerts[1].Resolved)

	logs, err := s.UserActivityLogs(ctx)
	require.NoError(t, err)
	resolves := 0
	for _, l := range logs {
		if l.Action == ActionAlertResolve {
			resolves++
			assert.Equal(t, "Resolved security alert: New sign-in", l.Details)
		}
	}
	assert.Equal(t, 1, resolves, "resolving twice logs once")

	stats, err := s.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UnresolvedAlerts)
}

func TestRecordWebsiteCheck(t *testing.T) {
	ctx := context.Background()
	checker := webcheck.New(webcheck.WithDomainAge(webcheck.FixedDomainAge(1000)))

	t.Run("requires session", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, err := s.RecordWebsiteCheck(ctx, checker.Score("https://example.com"))
		assert.ErrorIs(t, err, ErrNotLoggedIn)
	})

	t.Run("safe result raises nothing", func(t *testing.T) {
		s, _ := newTestStore(t)
		signUp(t, s, "a@example.com")

		alert, err := s.RecordWebsiteCheck(ctx, checker.Score("https://example.com"))
		require.NoError(t, err)
		assert.Nil(t, alert)

		alerts, err := s.UserSecurityAlerts(ctx)
		require.NoError(t, err)
		assert.Empty(t, alerts)

		logs, err := s.UserActivityLogs(ctx)
		require.NoError(t, err)
		assert.Equal(t, ActionWebsiteCheck, logs[0].Action)
		assert.Equal(t, "Checked website security: https://example.com", logs[0].Details)
	})

	t.Run("dangerous result raises alert", func(t *testing.T) {
		s, _ := newTestStore(t)
		signUp(t, s, "a@example.com")

		alert, err := s.RecordWebsiteCheck(ctx, checker.Score("http://phishing-bank.com"))
		require.NoError(t, err)
		require.NotNil(t, alert)
		assert.Equal(t, AlertSuspicious, alert.Type)
		assert.Equal(t, SeverityHigh, alert.Severity)
		assert.Equal(t, "Dangerous Website Detected", alert.Title)
		assert.Equal(t, "Website http://phishing-bank.com was flagged as dangerous with risk score 100%", alert.Description)

		alerts, err := s.UserSecurityAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, alert.ID, alerts[0].ID)
	})
}

func TestUserStats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@example.com")

	for i := range 6 {
		_, err := s.AddVaultItem(ctx, ItemInput{
			Title:  fmt.Sprintf("item-%d", i),
			Fields: PasswordFields{Password: "pw"},
		})
		require.NoError(t, err)
	}
	_, err := s.AddVaultItem(ctx, ItemInput{Title: "seed", Fields: CryptoFields{SeedPhrase: "abandon"}})
	require.NoError(t, err)

	stats, err := s.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalVaultItems)
	assert.Equal(t, 6, stats.VaultByKind[KindPassword])
	assert.Equal(t, 1, stats.VaultByKind[KindCrypto])
	assert.Len(t, stats.VaultByKind, len(Kinds))
	require.Len(t, stats.RecentActivities, 5)
	assert.Equal(t, "Added crypto: seed", stats.RecentActivities[0].Details)
	for i := 1; i < len(stats.RecentActivities); i++ {
		assert.False(t, stats.RecentActivities[i].Timestamp.After(stats.RecentActivities[i-1].Timestamp))
	}
}

func TestAddActivityLogWithoutSession(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	entry, err := s.AddActivityLog(ctx, "someone", "custom", "details", "Lisbon")
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", entry.Location)
	assert.Equal(t, SimulatedIP, entry.IPAddress)

	_, err = s.AddActivityLog(ctx, "", "custom", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.ActivityLogs, 1)
}

func TestRecorderReceivesEntries(t *testing.T) {
	rec := &fakeRecorder{}
	s, _ := newTestStore(t, WithRecorder(rec))
	ctx := context.Background()

	u := signUp(t, s, "a@example.com")
	_, err := s.AddVaultItem(ctx, ItemInput{Title: "n", Fields: NoteFields{}})
	require.NoError(t, err)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, recordedEntry{ActionAccountCreated, u.ID}, rec.entries[0])
	assert.Equal(t, recordedEntry{ActionVaultAdd, u.ID}, rec.entries[1])

	// a failing recorder does not fail the mutation
	rec.err = errors.New("disk full")
	_, err = s.AddVaultItem(ctx, ItemInput{Title: "m", Fields: NoteFields{}})
	require.NoError(t, err)

	// failed mutations are not mirrored
	_, err = s.AddVaultItem(ctx, ItemInput{Title: "", Fields: NoteFields{}})
	require.Error(t, err)
	assert.Len(t, rec.entries, 3)
}

func TestConcurrentMutations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	signUp(t, s, "a@example.com")

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddVaultItem(ctx, ItemInput{Title: fmt.Sprintf("n-%d", i), Fields: NoteFields{}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := s.UserVaultItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 10)
}

func TestVaultItemJSON(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	fields := []ItemFields{
		PasswordFields{Username: "u", Password: "p", URL: "https://x.example"},
		BankFields{BankName: "B", AccountNumber: "1", RoutingNumber: "2", AccountType: "checking", SwiftCode: "S"},
		CardFields{CardNumber: "4111", ExpiryDate: "12/30", CVV: "123", CardholderName: "A", CardType: "visa"},
		NoteFields{},
		KeyFields{APIKey: "k", ServiceURL: "https://api.example"},
		IdentityFields{FullName: "A", DateOfBirth: "2000-01-01", SSN: "x", PassportNumber: "p", Nationality: "n"},
		LicenseFields{LicenseNumber: "L", LicenseType: "driver", IssueDate: "2020", ExpiryDate: "2030", IssuingAuthority: "DMV"},
		WifiFields{NetworkName: "n", WifiPassword: "w", SecurityType: "WPA2"},
		ServerFields{ServerName: "s", IPAddress: "10.0.0.1", Port: "22", ServerUsername: "root", ServerPassword: "pw"},
		CryptoFields{WalletName: "w", WalletAddress: "0x1", PrivateKey: "pk", SeedPhrase: "seed", CryptoType: "eth"},
	}
	require.Len(t, fields, len(Kinds))

	for _, f := range fields {
		t.Run(string(f.Kind()), func(t *testing.T) {
			item := VaultItem{ID: "i1", UserID: "u1", Title: "t", Notes: "n", CreatedAt: created, Fields: f}
			data, err := json.Marshal(item)
			require.NoError(t, err)

			var flat map[string]any
			require.NoError(t, json.Unmarshal(data, &flat))
			assert.Equal(t, string(f.Kind()), flat["type"])
			assert.Equal(t, "u1", flat["userId"])
			assert.NotContains(t, flat, "Fields")

			var back VaultItem
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, item, back)
		})
	}

	t.Run("key fields use legacy names", func(t *testing.T) {
		data, err := json.Marshal(VaultItem{ID: "k", Fields: KeyFields{APIKey: "secret", ServiceURL: "https://a"}})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"password":"secret"`)
		assert.Contains(t, string(data), `"url":"https://a"`)
	})

	t.Run("unknown type", func(t *testing.T) {
		var it VaultItem
		err := json.Unmarshal([]byte(`{"id":"x","type":"spaceship"}`), &it)
		assert.Error(t, err)
	})

	t.Run("missing fields cannot be marshalled", func(t *testing.T) {
		_, err := json.Marshal(VaultItem{ID: "x"})
		assert.Error(t, err)
	})
}

func TestParseKindAndSecretValues(t *testing.T) {
	k, err := ParseKind("server")
	require.NoError(t, err)
	assert.Equal(t, KindServer, k)
	_, err = ParseKind("spaceship")
	assert.ErrorIs(t, err, ErrInvalidInput)

	for _, kind := range Kinds {
		f, err := NewFields(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, f.Kind())
		assert.Empty(t, SecretValues(f))
	}

	assert.Equal(t, map[string]string{"privateKey": "pk", "seedPhrase": "s"},
		SecretValues(CryptoFields{PrivateKey: "pk", SeedPhrase: "s"}))
	assert.Equal(t, map[string]string{"apiKey": "k"}, SecretValues(KeyFields{APIKey: "k"}))
	assert.Empty(t, SecretValues(IdentityFields{SSN: "123"}))
}

func TestReplace(t *testing.T) {
	ctx := context.Background()

	t.Run("signs everyone out", func(t *testing.T) {
		s, backend := newTestStore(t)
		signUp(t, s, "a@example.com")

		snapshot, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, snapshot.CurrentUser)

		require.NoError(t, s.Replace(ctx, snapshot))

		_, ok, err := backend.Get(ctx, storage.KeyCurrentUser)
		require.NoError(t, err)
		assert.False(t, ok, "plaintext session pointer must be cleared")

		doc, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, doc.CurrentUser)
		assert.Len(t, doc.Users, 1)

		_, err = s.CurrentUser(ctx)
		assert.ErrorIs(t, err, ErrNotLoggedIn)

		_, err = s.AuthenticateUser(ctx, "a@example.com", "hunter2")
		assert.NoError(t, err)
	})

	t.Run("empty backend", func(t *testing.T) {
		s, _ := newTestStore(t)
		doc := &Document{Users: []User{{ID: "u1", Email: "x@example.com"}}}
		require.NoError(t, s.Replace(ctx, doc))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got.Users, 1)
	})

	for _, reset := range []bool{false, true} {
		t.Run(fmt.Sprintf("mistyped passphrase reset=%v", reset), func(t *testing.T) {
			s, backend := newTestStore(t)
			signUp(t, s, "a@example.com")
			doc, err := s.Load(ctx)
			require.NoError(t, err)
			before, _, _ := backend.Get(ctx, storage.KeyData)

			typo := New(backend, crypto.NewSealer("test-passphrsae"), WithResetOnCorruption(reset))
			err = typo.Replace(ctx, doc)
			assert.ErrorIs(t, err, ErrCorrupted)

			after, _, _ := backend.Get(ctx, storage.KeyData)
			assert.Equal(t, before, after, "document must not be re-sealed")
			_, err = s.Load(ctx)
			assert.NoError(t, err, "real passphrase must still open the store")
		})
	}
}
