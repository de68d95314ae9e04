package importer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forest6511/sentrivault/pkg/store"
)

// BitwardenParser parses Bitwarden JSON export files. Logins, secure notes,
// cards and identities map onto the matching vault kinds.
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// Bitwarden custom field types.
const (
	bitwardenFieldText    = 0
	bitwardenFieldHidden  = 1
	bitwardenFieldBoolean = 2
)

type bitwardenExport struct {
	Items   []bitwardenItem   `json:"items"`
	Folders []bitwardenFolder `json:"folders"`
}

type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bitwardenItem struct {
	Type     int                    `json:"type"`
	Name     string                 `json:"name"`
	Notes    string                 `json:"notes"`
	FolderID *string                `json:"folderId"`
	Login    *bitwardenLogin        `json:"login"`
	Card     *bitwardenCard         `json:"card"`
	Identity *bitwardenIdentity     `json:"identity"`
	Fields   []bitwardenCustomField `json:"fields"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

type bitwardenCard struct {
	CardholderName string `json:"cardholderName"`
	Number         string `json:"number"`
	ExpMonth       string `json:"expMonth"`
	ExpYear        string `json:"expYear"`
	Code           string `json:"code"`
	Brand          string `json:"brand"`
}

type bitwardenIdentity struct {
	Title          string `json:"title"`
	FirstName      string `json:"firstName"`
	MiddleName     string `json:"middleName"`
	LastName       string `json:"lastName"`
	Username       string `json:"username"`
	Company        string `json:"company"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address1       string `json:"address1"`
	Address2       string `json:"address2"`
	Address3       string `json:"address3"`
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postalCode"`
	Country        string `json:"country"`
	SSN            string `json:"ssn"`
	PassportNumber string `json:"passportNumber"`
	LicenseNumber  string `json:"licenseNumber"`
}

type bitwardenCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  int    `json:"type"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data.
func (p *BitwardenParser) Parse(data []byte) (*Result, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("importer: failed to parse Bitwarden JSON: %w", err)
	}

	folders := make(map[string]string, len(export.Folders))
	for _, f := range export.Folders {
		folders[f.ID] = f.Name
	}

	result := newResult()
	counter := 1
	for i := range export.Items {
		item := &export.Items[i]
		input, warnings, reason := p.convert(item, folders, &counter)
		for _, w := range warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("item %d (%s): %s", i+1, item.Name, w))
		}
		if input == nil {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: reason})
			continue
		}
		result.Items = append(result.Items, *input)
	}
	return result, nil
}

func (p *BitwardenParser) convert(item *bitwardenItem, folders map[string]string, counter *int) (*store.ItemInput, []string, string) {
	var (
		notes    noteBuilder
		warnings []string
		fields   store.ItemFields
		url      string
	)
	notes.body(item.Notes)

	switch item.Type {
	case bitwardenTypeLogin:
		if item.Login == nil {
			return nil, nil, "login item without login data"
		}
		for i, u := range item.Login.URIs {
			if i == 0 {
				url = strings.TrimSpace(u.URI)
				continue
			}
			notes.field("url", u.URI)
		}
		var w string
		if url, w = checkURL(url); w != "" {
			warnings = append(warnings, w)
		}
		notes.field("totp", item.Login.TOTP)
		if IsEmptyOrWhitespace(item.Login.Username) && IsEmptyOrWhitespace(item.Login.Password) &&
			url == "" && IsEmptyOrWhitespace(item.Notes) && len(item.Fields) == 0 {
			return nil, nil, "no useful data"
		}
		fields = store.PasswordFields{
			Username: strings.TrimSpace(item.Login.Username),
			Password: item.Login.Password,
			URL:      url,
		}

	case bitwardenTypeSecureNote:
		if IsEmptyOrWhitespace(item.Notes) && len(item.Fields) == 0 {
			return nil, nil, "empty secure note"
		}
		fields = store.NoteFields{}

	case bitwardenTypeCard:
		if item.Card == nil {
			return nil, nil, "card item without card data"
		}
		fields = store.CardFields{
			CardNumber:     strings.TrimSpace(item.Card.Number),
			ExpiryDate:     cardExpiry(item.Card.ExpMonth, item.Card.ExpYear),
			CVV:            strings.TrimSpace(item.Card.Code),
			CardholderName: strings.TrimSpace(item.Card.CardholderName),
			CardType:       strings.TrimSpace(item.Card.Brand),
		}

	case bitwardenTypeIdentity:
		if item.Identity == nil {
			return nil, nil, "identity item without identity data"
		}
		id := item.Identity
		fields = store.IdentityFields{
			FullName:       joinNonEmpty(" ", id.FirstName, id.MiddleName, id.LastName),
			SSN:            strings.TrimSpace(id.SSN),
			PassportNumber: strings.TrimSpace(id.PassportNumber),
			Nationality:    strings.TrimSpace(id.Country),
		}
		notes.field("title", id.Title)
		notes.field("username", id.Username)
		notes.field("company", id.Company)
		notes.field("email", id.Email)
		notes.field("phone", id.Phone)
		notes.field("address", joinNonEmpty(", ", id.Address1, id.Address2, id.Address3, id.City, id.State, id.PostalCode))
		notes.field("license", id.LicenseNumber)

	default:
		return nil, []string{fmt.Sprintf("unsupported item type %d", item.Type)}, "unsupported type"
	}

	for _, f := range item.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		switch f.Type {
		case bitwardenFieldText, bitwardenFieldHidden, bitwardenFieldBoolean:
			notes.field(name, f.Value)
		default:
			warnings = append(warnings, fmt.Sprintf("custom field %q has unknown type %d", name, f.Type))
		}
	}
	if item.FolderID != nil {
		notes.field("folder", folders[*item.FolderID])
	}

	body, w := notes.String()
	if w != "" {
		warnings = append(warnings, w)
	}
	return &store.ItemInput{
		Title:  itemTitle(item.Name, url, counter),
		Notes:  body,
		Fields: fields,
	}, warnings, ""
}

// cardExpiry formats Bitwarden's month and year as MM/YY.
func cardExpiry(month, year string) string {
	month, year = strings.TrimSpace(month), strings.TrimSpace(year)
	if month == "" && year == "" {
		return ""
	}
	if len(month) == 1 {
		month = "0" + month
	}
	if len(year) == 4 {
		year = year[2:]
	}
	return month + "/" + year
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
