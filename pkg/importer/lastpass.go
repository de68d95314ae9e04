package importer

import (
	"errors"
	"fmt"
	"io"

	"github.com/forest6511/sentrivault/pkg/store"
)

// LastPassParser parses LastPass CSV export files:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// LastPass CSV column names.
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColTOTP     = "totp"
	lpColExtra    = "extra"
	lpColName     = "name"
	lpColGrouping = "grouping"
)

// lpSecureNoteURL marks a row as a secure note rather than a site login.
const lpSecureNoteURL = "http://sn"

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data.
func (p *LastPassParser) Parse(data []byte) (*Result, error) {
	table, err := readCSV(data, true)
	if err != nil {
		return nil, err
	}
	if !table.has(lpColName) {
		return nil, fmt.Errorf("importer: missing required column: %s", lpColName)
	}

	result := newResult()
	counter := 1
	for {
		row, err := table.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
			continue
		}

		get := func(col string) string { return DecodeHTMLEntities(table.value(row, col)) }
		name := get(lpColName)
		url := get(lpColURL)
		username := get(lpColUsername)
		password := table.value(row, lpColPassword)
		extra := get(lpColExtra)

		var notes noteBuilder
		notes.body(extra)

		var fields store.ItemFields
		if url == lpSecureNoteURL {
			if IsEmptyOrWhitespace(extra) {
				result.Skipped = append(result.Skipped, SkippedItem{OriginalName: name, Reason: "empty secure note"})
				continue
			}
			url = ""
			fields = store.NoteFields{}
		} else {
			if username == "" && password == "" && url == "" && IsEmptyOrWhitespace(extra) {
				result.Skipped = append(result.Skipped, SkippedItem{OriginalName: name, Reason: "no useful data"})
				continue
			}
			var w string
			if url, w = checkURL(url); w != "" {
				result.Warnings = append(result.Warnings, fmt.Sprintf("row %d (%s): %s", table.row, name, w))
			}
			notes.field("totp", table.value(row, lpColTOTP))
			fields = store.PasswordFields{Username: username, Password: password, URL: url}
		}
		notes.field("group", get(lpColGrouping))

		body, w := notes.String()
		if w != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d (%s): %s", table.row, name, w))
		}
		result.Items = append(result.Items, store.ItemInput{
			Title:  itemTitle(name, url, &counter),
			Notes:  body,
			Fields: fields,
		})
	}
	return result, nil
}
