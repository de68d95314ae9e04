package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/forest6511/sentrivault/pkg/store"
)

// OnePasswordParser parses 1Password CSV export files:
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

// 1Password CSV column names.
const (
	op1ColTitle    = "Title"
	op1ColWebsite  = "Website"
	op1ColUsername = "Username"
	op1ColPassword = "Password"
	op1ColOTPAuth  = "OTPAuth"
	op1ColArchived = "Archived"
	op1ColTags     = "Tags"
	op1ColNotes    = "Notes"
)

// Source returns the source type for this parser.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse parses 1Password CSV data. Every row becomes a password item.
func (p *OnePasswordParser) Parse(data []byte) (*Result, error) {
	table, err := readCSV(data, false)
	if err != nil {
		return nil, err
	}
	if !table.has(op1ColTitle) {
		return nil, fmt.Errorf("importer: missing required column: %s", op1ColTitle)
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

		title := table.value(row, op1ColTitle)
		url := table.value(row, op1ColWebsite)
		username := table.value(row, op1ColUsername)
		password := table.value(row, op1ColPassword)
		body := table.value(row, op1ColNotes)

		if username == "" && password == "" && url == "" && body == "" {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: title, Reason: "no useful data"})
			continue
		}

		var w string
		if url, w = checkURL(url); w != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d (%s): %s", table.row, title, w))
		}

		var notes noteBuilder
		notes.body(body)
		notes.field("totp", table.value(row, op1ColOTPAuth))
		notes.field("tags", normalizeTags(table.value(row, op1ColTags)))
		if strings.EqualFold(table.value(row, op1ColArchived), "true") {
			notes.field("archived", "true")
		}

		text, w := notes.String()
		if w != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d (%s): %s", table.row, title, w))
		}
		result.Items = append(result.Items, store.ItemInput{
			Title:  itemTitle(title, url, &counter),
			Notes:  text,
			Fields: store.PasswordFields{Username: username, Password: password, URL: url},
		})
	}
	return result, nil
}

// normalizeTags trims the comma-separated tag list and drops empty tags.
func normalizeTags(s string) string {
	return joinNonEmpty(", ", strings.Split(s, ",")...)
}
