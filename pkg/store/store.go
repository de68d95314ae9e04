// Package store implements the encrypted record store: one sealed JSON
// document holding every user, vault item, security alert and activity entry,
// persisted under a single key of a storage.Backend.
//
// Every mutation reads the whole document, changes it in memory and writes the
// whole document back. Mutations through one Store are serialised; two Stores
// (or two processes) sharing a backend are last-write-wins at document
// granularity.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forest6511/sentrivault/pkg/crypto"
	"github.com/forest6511/sentrivault/pkg/storage"
)

// SimulatedIP is recorded on every activity entry; there is no network peer.
const SimulatedIP = "192.168.1.1"

// Errors
var (
	ErrCorrupted          = errors.New("store: stored document cannot be decoded")
	ErrDuplicateEmail     = errors.New("store: user with this email already exists")
	ErrInvalidCredentials = errors.New("store: invalid email or password")
	ErrNotLoggedIn        = errors.New("store: no authenticated user")
	ErrStaleSession       = fmt.Errorf("%w: current user no longer exists", ErrNotLoggedIn)
	ErrItemNotFound       = errors.New("store: vault item not found")
	ErrAlertNotFound      = errors.New("store: security alert not found")
	ErrKindMismatch       = errors.New("store: fields do not match the item kind")
	ErrInvalidInput       = errors.New("store: invalid input")
)

// Recorder receives a copy of every activity entry after it is persisted.
type Recorder interface {
	Record(action string, content any, metadata string) error
}

// Document is the full persisted state.
type Document struct {
	Users          []User          `json:"users"`
	VaultItems     []VaultItem     `json:"vaultItems"`
	SecurityAlerts []SecurityAlert `json:"securityAlerts"`
	ActivityLogs   []ActivityLog   `json:"activityLogs"`
	CurrentUser    *string         `json:"currentUser"`
}

func newDocument() *Document {
	return &Document{
		Users:          []User{},
		VaultItems:     []VaultItem{},
		SecurityAlerts: []SecurityAlert{},
		ActivityLogs:   []ActivityLog{},
	}
}

// normalize replaces nil collections so the document always serialises with
// empty arrays rather than null.
func (d *Document) normalize() {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.VaultItems == nil {
		d.VaultItems = []VaultItem{}
	}
	if d.SecurityAlerts == nil {
		d.SecurityAlerts = []SecurityAlert{}
	}
	if d.ActivityLogs == nil {
		d.ActivityLogs = []ActivityLog{}
	}
}

func (d *Document) userByID(id string) *User {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i]
		}
	}
	return nil
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the record id source.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithRecorder mirrors activity entries to r.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithResetOnCorruption makes Load return an empty document instead of
// ErrCorrupted when the stored blob cannot be decoded. The next mutation then
// overwrites the unreadable blob.
func WithResetOnCorruption(reset bool) Option {
	return func(s *Store) { s.resetOnCorruption = reset }
}

// Store is the record store.
type Store struct {
	backend storage.Backend
	sealer  *crypto.Sealer

	now               func() time.Time
	newID             func() string
	log               *zap.Logger
	recorder          Recorder
	resetOnCorruption bool

	mu sync.Mutex
}

// New creates a Store over backend, sealing the document with sealer.
func New(backend storage.Backend, sealer *crypto.Sealer, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		sealer:  sealer,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the current document. A missing document is created empty and
// persisted. An undecodable document yields ErrCorrupted unless the store was
// built WithResetOnCorruption.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save seals and writes doc, replacing the stored document.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, doc)
}

// Replace swaps the stored document for doc and signs everyone out. The
// existing document must open under this store's passphrase, whatever the
// reset setting, so a mistyped passphrase cannot re-key the store.
func (s *Store) Replace(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.backend.Get(ctx, storage.KeyData)
	if err != nil {
		return fmt.Errorf("store: failed to read document: %w", err)
	}
	if ok {
		if err := s.sealer.OpenJSON(raw, newDocument()); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
	}

	doc.CurrentUser = nil
	if err := s.save(ctx, doc); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, storage.KeyCurrentUser); err != nil {
		return fmt.Errorf("store: failed to clear current user: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (*Document, error) {
	raw, ok, err := s.backend.Get(ctx, storage.KeyData)
	if err != nil {
		return nil, fmt.Errorf("store: failed to read document: %w", err)
	}
	if !ok {
		doc := newDocument()
		if err := s.save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc := newDocument()
	if err := s.sealer.OpenJSON(raw, doc); err != nil {
		if s.resetOnCorruption {
			s.log.Warn("stored document is unreadable, continuing with an empty document",
				zap.Error(err))
			return newDocument(), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	doc.normalize()
	return doc, nil
}

func (s *Store) save(ctx context.Context, doc *Document) error {
	doc.normalize()
	blob, err := s.sealer.SealJSON(doc)
	if err != nil {
		return fmt.Errorf("store: failed to seal document: %w", err)
	}
	if err := s.backend.Set(ctx, storage.KeyData, blob); err != nil {
		return fmt.Errorf("store: failed to write document: %w", err)
	}
	return nil
}

// txn is one read-modify-write cycle.
type txn struct {
	ctx    context.Context
	s      *Store
	doc    *Document
	logged []ActivityLog
}

// logActivity appends an activity entry to the document being mutated.
func (t *txn) logActivity(userID, action, details, location string) ActivityLog {
	entry := ActivityLog{
		ID:        t.s.newID(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		Timestamp: t.s.now(),
		Location:  location,
		IPAddress: SimulatedIP,
	}
	t.doc.ActivityLogs = append(t.doc.ActivityLogs, entry)
	t.logged = append(t.logged, entry)
	return entry
}

// currentUser resolves the signed-in user for this transaction.
func (t *txn) currentUser() (*User, error) {
	id, err := t.s.currentUserID(t.ctx, t.doc)
	if err != nil {
		return nil, err
	}
	u := t.doc.userByID(id)
	if u == nil {
		return nil, ErrStaleSession
	}
	return u, nil
}

// mutate runs fn against a freshly loaded document and saves the result if fn
// succeeds. Nothing is written when fn returns an error.
func (s *Store) mutate(ctx context.Context, fn func(t *txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	t := &txn{ctx: ctx, s: s, doc: doc}
	if err := fn(t); err != nil {
		return err
	}
	if err := s.save(ctx, doc); err != nil {
		return err
	}
	s.record(t.logged)
	return nil
}

// view runs fn against a freshly loaded document without saving.
func (s *Store) view(ctx context.Context, fn func(t *txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(&txn{ctx: ctx, s: s, doc: doc})
}

func (s *Store) record(entries []ActivityLog) {
	if s.recorder == nil {
		return
	}
	for _, e := range entries {
		if err := s.recorder.Record(e.Action, e, e.UserID); err != nil {
			s.log.Warn("failed to mirror activity to ledger",
				zap.String("action", e.Action), zap.Error(err))
		}
	}
}

// currentUserID returns the signed-in user id. The plaintext pointer takes
// precedence over the one embedded in the document; the two can disagree.
func (s *Store) currentUserID(ctx context.Context, doc *Document) (string, error) {
	id, ok, err := s.backend.Get(ctx, storage.KeyCurrentUser)
	if err != nil {
		return "", fmt.Errorf("store: failed to read current user: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	if doc.CurrentUser != nil && *doc.CurrentUser != "" {
		return *doc.CurrentUser, nil
	}
	return "", ErrNotLoggedIn
}
