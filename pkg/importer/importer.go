// Package importer converts exports from other password managers into vault
// item inputs. Supported: 1Password CSV, Bitwarden JSON and LastPass CSV.
//
// Values without a dedicated field on the target kind (TOTP seeds, extra
// URLs, custom fields, folders) are kept as "label: value" lines in the
// item's notes so nothing is silently lost.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/sentrivault/pkg/store"
	"github.com/forest6511/sentrivault/pkg/webcheck"
)

// Source represents the source password manager format.
type Source string

const (
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
)

// ErrUnsupportedSource is returned by GetParser for unknown formats.
var ErrUnsupportedSource = errors.New("importer: unsupported import source")

// Result contains the outcome of parsing one export.
type Result struct {
	// Items are ready to pass to store.AddVaultItem.
	Items []store.ItemInput
	// Warnings are non-fatal issues encountered during parsing.
	Warnings []string
	// Skipped are entries that produced no item.
	Skipped []SkippedItem
}

// SkippedItem represents an entry that was skipped during import.
type SkippedItem struct {
	OriginalName string
	Reason       string
}

// Parser is the interface for export format parsers.
type Parser interface {
	Parse(data []byte) (*Result, error)
	Source() Source
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	}
}

// ValidSources returns a list of valid source names.
func ValidSources() []string {
	return []string{
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
	}
}

func newResult() *Result {
	return &Result{
		Items:    []store.ItemInput{},
		Warnings: []string{},
		Skipped:  []SkippedItem{},
	}
}

// itemTitle normalizes name into a title, falling back to the URL's host or a
// numbered placeholder.
func itemTitle(name, url string, counter *int) string {
	title := strings.TrimSpace(norm.NFC.String(name))
	if title == "" && url != "" {
		title = strings.TrimPrefix(webcheck.ExtractHost(url), "www.")
	}
	if title == "" {
		title = fmt.Sprintf("Imported item %d", *counter)
		*counter++
	}
	if len(title) > store.MaxTitleLength {
		title = truncateBytes(title, store.MaxTitleLength)
	}
	return title
}

// checkURL drops URLs the store would reject.
func checkURL(url string) (string, string) {
	if len(url) > store.MaxURLLength {
		return "", fmt.Sprintf("url longer than %d bytes dropped", store.MaxURLLength)
	}
	return url, ""
}

// noteBuilder accumulates an item's notes.
type noteBuilder struct {
	lines []string
}

func (n *noteBuilder) body(text string) {
	if text = strings.TrimSpace(text); text != "" {
		n.lines = append(n.lines, text)
	}
}

func (n *noteBuilder) field(label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		n.lines = append(n.lines, label+": "+value)
	}
}

// String joins the notes, truncated to what the store accepts. The second
// result is a warning when truncation happened.
func (n *noteBuilder) String() (string, string) {
	notes := strings.Join(n.lines, "\n")
	if len(notes) <= store.MaxNotesSize {
		return notes, ""
	}
	return truncateBytes(notes, store.MaxNotesSize), "notes truncated"
}

// DecodeHTMLEntities decodes HTML entities found in LastPass exports.
func DecodeHTMLEntities(s string) string {
	return html.UnescapeString(s)
}

// IsEmptyOrWhitespace checks if a string is empty or contains only whitespace.
func IsEmptyOrWhitespace(s string) bool {
	return strings.TrimSpace(s) == ""
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// csvTable is a header-indexed CSV export.
type csvTable struct {
	header []string
	index  map[string]int
	reader *csv.Reader
	row    int
}

// readCSV strips a UTF-8 BOM and reads the header. When fold is set column
// names are matched case-insensitively.
func readCSV(data []byte, fold bool) (*csvTable, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true // Handle malformed exports
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if fold {
			col = strings.ToLower(col)
		}
		index[col] = i
	}
	return &csvTable{header: header, index: index, reader: reader, row: 1}, nil
}

func (t *csvTable) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// next returns the following row, io.EOF at the end, or a row-numbered
// error for a malformed row that the caller may skip.
func (t *csvTable) next() ([]string, error) {
	t.row++
	row, err := t.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("row %d: failed to parse: %v", t.row, err)
	}
	if len(row) != len(t.header) {
		return nil, fmt.Errorf("row %d: column count mismatch (expected %d, got %d)", t.row, len(t.header), len(row))
	}
	return row, nil
}

func (t *csvTable) value(row []string, col string) string {
	if idx, ok := t.index[col]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}
