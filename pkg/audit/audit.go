// Package audit keeps a tamper-evident ledger of account activity.
//
// Each entry records an action type, the SHA-256 of the JSON-encoded content
// it refers to and free-form metadata. Entries are appended to monthly JSONL
// files and linked by an HMAC chain, so deleting, reordering or editing a
// line is detected by Verify.
package audit

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forest6511/sentrivault/pkg/crypto"
)

// MinDiskSpace is the free space required before appending an entry.
const MinDiskSpace = 1024 * 1024

const (
	schemaVersion = 1
	genesisHash   = "genesis"
	metaFileName  = "ledger.meta"
	saltFileName  = "ledger.salt"
	logExt        = ".jsonl"
	hmacInfo      = "audit-log-v1"
)

// Sources
const (
	SourceCLI = "cli"
	SourceMCP = "mcp"
)

// Export formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var (
	ErrKeyNotSet         = errors.New("audit: HMAC key not set")
	ErrUnsupportedFormat = errors.New("audit: unsupported export format")
)

// Event is one ledger entry.
type Event struct {
	Version     int    `json:"v"`
	ID          string `json:"id"`
	Timestamp   string `json:"ts"`
	ActionType  string `json:"action"`
	ContentHash string `json:"content_hash"`
	Metadata    string `json:"metadata,omitempty"`
	Source      string `json:"source"`
	SessionID   string `json:"session_id"`
	Chain       Chain  `json:"chain"`
}

// Chain links an event to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// Time parses the event timestamp.
func (e Event) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// VerifyResult reports the outcome of a chain check.
type VerifyResult struct {
	Valid           bool     `json:"valid"`
	RecordsTotal    int      `json:"records_total"`
	RecordsVerified int      `json:"records_verified"`
	Errors          []string `json:"errors,omitempty"`
}

type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// Option configures a Logger.
type Option func(*Logger)

// WithSource tags every entry with source (default SourceCLI).
func WithSource(source string) Option {
	return func(l *Logger) { l.source = source }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithLogger sets the diagnostics logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Logger) { l.log = log }
}

// Logger appends to and reads the ledger under one directory.
type Logger struct {
	path      string
	source    string
	sessionID string
	now       func() time.Time
	log       *zap.Logger

	mu       sync.Mutex
	hmacKey  []byte
	sequence int64
	prevHash string
}

// NewLogger returns a Logger rooted at path. SetHMACKey must be called before
// entries can be written or verified.
func NewLogger(path string, opts ...Option) *Logger {
	l := &Logger{
		path:      path,
		source:    SourceCLI,
		sessionID: newSessionID(),
		now:       func() time.Time { return time.Now().UTC() },
		log:       zap.NewNop(),
		prevHash:  genesisHash,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the ledger directory.
func (l *Logger) Path() string {
	return l.path
}

// KeySalt returns the salt the master key for this ledger is derived with,
// creating it on first use. It survives Clear so the key stays stable.
func (l *Logger) KeySalt() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.path, saltFileName)
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != crypto.SaltLength {
			return nil, fmt.Errorf("audit: %s has %d bytes, want %d", saltFileName, len(salt), crypto.SaltLength)
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("audit: failed to read key salt: %w", err)
	}

	if err := os.MkdirAll(l.path, 0700); err != nil {
		return nil, fmt.Errorf("audit: failed to create ledger directory: %w", err)
	}
	salt = make([]byte, crypto.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("audit: failed to generate key salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("audit: failed to write key salt: %w", err)
	}
	return salt, nil
}

// SetHMACKey derives the chain key from masterKey and resumes the chain from
// the persisted state, if any.
func (l *Logger) SetHMACKey(masterKey []byte) error {
	key, err := crypto.DeriveSubkey(masterKey, hmacInfo)
	if err != nil {
		return fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.hmacKey = key
	if err := l.loadChainState(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.log.Warn("ledger chain state unreadable, starting a new chain", zap.Error(err))
		}
		l.sequence = 0
		l.prevHash = genesisHash
	}
	return nil
}

// ContentHash returns the hex SHA-256 of content's JSON encoding.
func ContentHash(content any) (string, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("audit: failed to encode content: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Log appends an entry for actionType.
func (l *Logger) Log(actionType string, content any, metadata string) (*Event, error) {
	hash, err := ContentHash(content)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return nil, ErrKeyNotSet
	}
	if err := os.MkdirAll(l.path, 0700); err != nil {
		return nil, fmt.Errorf("audit: failed to create directory: %w", err)
	}
	if err := l.checkDiskSpace(); err != nil {
		return nil, err
	}

	now := l.now()
	event := Event{
		Version:     schemaVersion,
		ID:          newEventID(),
		Timestamp:   now.Format(time.RFC3339Nano),
		ActionType:  actionType,
		ContentHash: hash,
		Metadata:    metadata,
		Source:      l.source,
		SessionID:   l.sessionID,
		Chain: Chain{
			Sequence: l.sequence + 1,
			PrevHash: l.prevHash,
		},
	}
	event.Chain.HMAC = l.sign(&event)

	if err := l.appendEvent(now, &event); err != nil {
		return nil, err
	}
	l.sequence = event.Chain.Sequence
	l.prevHash = event.Chain.HMAC

	if err := l.saveChainState(); err != nil {
		return nil, err
	}
	return &event, nil
}

// Record logs an entry and discards it. It lets a Logger mirror record store
// activity.
func (l *Logger) Record(actionType string, content any, metadata string) error {
	_, err := l.Log(actionType, content, metadata)
	return err
}

// sign computes the HMAC over every field except the HMAC itself.
func (l *Logger) sign(e *Event) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		e.Version, e.ID, e.Timestamp, e.ActionType, e.ContentHash,
		e.Metadata, e.Source, e.SessionID, e.Chain.Sequence, e.Chain.PrevHash)
	mac := hmac.New(sha256.New, l.hmacKey)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (l *Logger) appendEvent(at time.Time, e *Event) error {
	name := filepath.Join(l.path, at.UTC().Format("2006-01")+logExt)
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.path, metaFileName))
	if err != nil {
		return err
	}
	var st chainState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	l.sequence = st.Sequence
	l.prevHash = st.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, metaFileName), data, 0600); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// Verify walks the whole ledger and checks sequence numbers, back links and
// HMACs.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return nil, ErrKeyNotSet
	}

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{Valid: true}
	prev := genesisHash
	var seq int64 = 1
	for i := range events {
		e := &events[i]
		res.RecordsTotal++

		if e.Chain.Sequence != seq {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf(
				"sequence gap at record %s: expected %d, got %d", e.ID, seq, e.Chain.Sequence))
		}
		if e.Chain.PrevHash != prev {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf(
				"chain broken at record %s: expected prev %s, got %s", e.ID, prev, e.Chain.PrevHash))
		}
		if !hmac.Equal([]byte(e.Chain.HMAC), []byte(l.sign(e))) {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf(
				"HMAC mismatch at record %s: possible tampering", e.ID))
		} else {
			res.RecordsVerified++
		}

		prev = e.Chain.HMAC
		seq++
	}
	return res, nil
}

// ListEvents returns entries newer than since (zero = all), keeping the most
// recent limit entries (0 = no limit), oldest first.
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}
	filtered := filterRange(events, since, time.Time{}, true)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// Exists reports whether an entry with contentHash is in the ledger.
func (l *Logger) Exists(contentHash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return false, err
	}
	for _, e := range events {
		if e.ContentHash == contentHash {
			return true, nil
		}
	}
	return false, nil
}

// Export renders entries between since and until (inclusive; zero values are
// open bounds) as FormatJSON or FormatCSV.
func (l *Logger) Export(format string, since, until time.Time) ([]byte, error) {
	if format != FormatJSON && format != FormatCSV {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}
	filtered := filterRange(events, since, until, false)

	if format == FormatCSV {
		return formatCSV(filtered)
	}
	if filtered == nil {
		filtered = []Event{}
	}
	return json.MarshalIndent(filtered, "", "  ")
}

// Clear deletes every ledger file and restarts the chain.
func (l *Logger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := l.logFiles()
	if err != nil {
		return err
	}
	for _, f := range append(files, filepath.Join(l.path, metaFileName)) {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("audit: failed to delete %s: %w", f, err)
		}
	}
	l.sequence = 0
	l.prevHash = genesisHash
	return nil
}

// filterRange keeps events after since and not after until. With exclusive
// set, an event exactly at since is dropped.
func filterRange(events []Event, since, until time.Time, exclusive bool) []Event {
	var out []Event
	for _, e := range events {
		ts, err := e.Time()
		if err != nil {
			continue
		}
		if !since.IsZero() {
			if ts.Before(since) || (exclusive && ts.Equal(since)) {
				continue
			}
		}
		if !until.IsZero() && ts.After(until) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (l *Logger) logFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.path, "*"+logExt))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	// YYYY-MM names sort chronologically.
	sort.Strings(files)
	return files, nil
}

func (l *Logger) readAll() ([]Event, error) {
	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}
	var all []Event
	for _, f := range files {
		events, err := readLogFile(f)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", f, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

func readLogFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var events []Event
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("failed to parse line: %w", err)
		}
		events = append(events, e)
	}
	return events, sc.Err()
}

func formatCSV(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "action", "content_hash", "metadata", "source", "seq"}); err != nil {
		return nil, err
	}
	for _, e := range events {
		row := []string{
			e.Timestamp,
			e.ActionType,
			e.ContentHash,
			e.Metadata,
			e.Source,
			fmt.Sprint(e.Chain.Sequence),
		}
		for i := range row {
			row[i] = neutralizeFormula(row[i])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// neutralizeFormula prefixes cells a spreadsheet would evaluate.
func neutralizeFormula(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + cell
	}
	return cell
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// newEventID returns a time-ordered UUIDv7, falling back to v4.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
