package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the shape of a vault item.
type Kind string

const (
	KindPassword Kind = "password"
	KindBank     Kind = "bank"
	KindCard     Kind = "card"
	KindNote     Kind = "note"
	KindKey      Kind = "key"
	KindIdentity Kind = "identity"
	KindLicense  Kind = "license"
	KindWifi     Kind = "wifi"
	KindServer   Kind = "server"
	KindCrypto   Kind = "crypto"
)

// Kinds lists every vault item kind in display order.
var Kinds = []Kind{
	KindPassword, KindBank, KindCard, KindNote, KindKey,
	KindIdentity, KindLicense, KindWifi, KindServer, KindCrypto,
}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown vault item kind %q", ErrInvalidInput, s)
}

// ItemFields is the kind-specific part of a vault item. It is implemented only
// by the *Fields types in this package.
type ItemFields interface {
	Kind() Kind
	sealed()
}

type PasswordFields struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	URL      string `json:"url,omitempty"`
}

type BankFields struct {
	BankName      string `json:"bankName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	RoutingNumber string `json:"routingNumber,omitempty"`
	AccountType   string `json:"accountType,omitempty"`
	SwiftCode     string `json:"swiftCode,omitempty"`
}

type CardFields struct {
	CardNumber     string `json:"cardNumber,omitempty"`
	ExpiryDate     string `json:"expiryDate,omitempty"`
	CVV            string `json:"cvv,omitempty"`
	CardholderName string `json:"cardholderName,omitempty"`
	CardType       string `json:"cardType,omitempty"`
}

// NoteFields carries nothing; the note body lives in VaultItem.Notes.
type NoteFields struct{}

// KeyFields holds an API key. The key is persisted under "password" and the
// service endpoint under "url".
type KeyFields struct {
	APIKey     string `json:"password,omitempty"`
	ServiceURL string `json:"url,omitempty"`
}

type IdentityFields struct {
	FullName       string `json:"fullName,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	SSN            string `json:"ssn,omitempty"`
	PassportNumber string `json:"passportNumber,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
}

type LicenseFields struct {
	LicenseNumber    string `json:"licenseNumber,omitempty"`
	LicenseType      string `json:"licenseType,omitempty"`
	IssueDate        string `json:"issueDate,omitempty"`
	ExpiryDate       string `json:"expiryDateLicense,omitempty"`
	IssuingAuthority string `json:"issuingAuthority,omitempty"`
}

type WifiFields struct {
	NetworkName  string `json:"networkName,omitempty"`
	WifiPassword string `json:"wifiPassword,omitempty"`
	SecurityType string `json:"securityType,omitempty"`
}

type ServerFields struct {
	ServerName     string `json:"serverName,omitempty"`
	IPAddress      string `json:"ipAddress,omitempty"`
	Port           string `json:"port,omitempty"`
	ServerUsername string `json:"serverUsername,omitempty"`
	ServerPassword string `json:"serverPassword,omitempty"`
}

type CryptoFields struct {
	WalletName    string `json:"walletName,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	PrivateKey    string `json:"privateKey,omitempty"`
	SeedPhrase    string `json:"seedPhrase,omitempty"`
	CryptoType    string `json:"cryptoType,omitempty"`
}

func (PasswordFields) Kind() Kind { return KindPassword }
func (BankFields) Kind() Kind     { return KindBank }
func (CardFields) Kind() Kind     { return KindCard }
func (NoteFields) Kind() Kind     { return KindNote }
func (KeyFields) Kind() Kind      { return KindKey }
func (IdentityFields) Kind() Kind { return KindIdentity }
func (LicenseFields) Kind() Kind  { return KindLicense }
func (WifiFields) Kind() Kind     { return KindWifi }
func (ServerFields) Kind() Kind   { return KindServer }
func (CryptoFields) Kind() Kind   { return KindCrypto }

func (PasswordFields) sealed() {}
func (BankFields) sealed()     {}
func (CardFields) sealed()     {}
func (NoteFields) sealed()     {}
func (KeyFields) sealed()      {}
func (IdentityFields) sealed() {}
func (LicenseFields) sealed()  {}
func (WifiFields) sealed()     {}
func (ServerFields) sealed()   {}
func (CryptoFields) sealed()   {}

// NewFields returns the zero fields value for kind.
func NewFields(kind Kind) (ItemFields, error) {
	switch kind {
	case KindPassword:
		return PasswordFields{}, nil
	case KindBank:
		return BankFields{}, nil
	case KindCard:
		return CardFields{}, nil
	case KindNote:
		return NoteFields{}, nil
	case KindKey:
		return KeyFields{}, nil
	case KindIdentity:
		return IdentityFields{}, nil
	case KindLicense:
		return LicenseFields{}, nil
	case KindWifi:
		return WifiFields{}, nil
	case KindServer:
		return ServerFields{}, nil
	case KindCrypto:
		return CryptoFields{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown vault item kind %q", ErrInvalidInput, kind)
	}
}

// SecretValues returns the credential-like values of f keyed by field name,
// omitting empty ones. Used for strength and reuse analysis.
func SecretValues(f ItemFields) map[string]string {
	out := make(map[string]string)
	put := func(name, value string) {
		if value != "" {
			out[name] = value
		}
	}
	switch v := f.(type) {
	case PasswordFields:
		put("password", v.Password)
	case KeyFields:
		put("apiKey", v.APIKey)
	case WifiFields:
		put("wifiPassword", v.WifiPassword)
	case ServerFields:
		put("serverPassword", v.ServerPassword)
	case CardFields:
		put("cvv", v.CVV)
	case CryptoFields:
		put("privateKey", v.PrivateKey)
		put("seedPhrase", v.SeedPhrase)
	case BankFields, NoteFields, IdentityFields, LicenseFields:
	}
	return out
}

// VaultItem is one user-owned secret record.
type VaultItem struct {
	ID        string
	UserID    string
	Title     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt *time.Time
	Fields    ItemFields
}

// Kind returns the item's kind, derived from its fields.
func (it VaultItem) Kind() Kind {
	if it.Fields == nil {
		return ""
	}
	return it.Fields.Kind()
}

// itemHeader holds the kind-independent JSON keys.
type itemHeader struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      Kind       `json:"type"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// MarshalJSON writes the item as one flat object: the header keys plus the
// kind-specific keys, discriminated by "type".
func (it VaultItem) MarshalJSON() ([]byte, error) {
	if it.Fields == nil {
		return nil, fmt.Errorf("store: vault item %s has no fields", it.ID)
	}
	header, err := json.Marshal(itemHeader{
		ID:        it.ID,
		UserID:    it.UserID,
		Type:      it.Fields.Kind(),
		Title:     it.Title,
		Notes:     it.Notes,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	fields, err := json.Marshal(it.Fields)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(fields, &merged); err != nil {
		return nil, err
	}
	var head map[string]json.RawMessage
	if err := json.Unmarshal(header, &head); err != nil {
		return nil, err
	}
	for k, v := range head {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the flat form written by MarshalJSON.
func (it *VaultItem) UnmarshalJSON(data []byte) error {
	var h itemHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}

	var err error
	switch h.Type {
	case KindPassword:
		it.Fields, err = decodeFields[PasswordFields](data)
	case KindBank:
		it.Fields, err = decodeFields[BankFields](data)
	case KindCard:
		it.Fields, err = decodeFields[CardFields](data)
	case KindNote:
		it.Fields = NoteFields{}
	case KindKey:
		it.Fields, err = decodeFields[KeyFields](data)
	case KindIdentity:
		it.Fields, err = decodeFields[IdentityFields](data)
	case KindLicense:
		it.Fields, err = decodeFields[LicenseFields](data)
	case KindWifi:
		it.Fields, err = decodeFields[WifiFields](data)
	case KindServer:
		it.Fields, err = decodeFields[ServerFields](data)
	case KindCrypto:
		it.Fields, err = decodeFields[CryptoFields](data)
	default:
		return fmt.Errorf("store: vault item %s has unknown type %q", h.ID, h.Type)
	}
	if err != nil {
		return err
	}

	it.ID = h.ID
	it.UserID = h.UserID
	it.Title = h.Title
	it.Notes = h.Notes
	it.CreatedAt = h.CreatedAt
	it.UpdatedAt = h.UpdatedAt
	return nil
}

func decodeFields[T ItemFields](data []byte) (ItemFields, error) {
	var f T
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}
