package backup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// MagicNumber opens every backup file.
var MagicNumber = [8]byte{'S', 'N', 'T', 'V', '_', 'B', 'K', 'P'}

// FormatVersion is the newest format this package writes and reads.
const FormatVersion = 1

// maxHeaderLen bounds the JSON header read from untrusted input.
const maxHeaderLen = 64 * 1024

// KDFParams records the Argon2id parameters used for the backup password.
type KDFParams struct {
	Salt        []byte `json:"salt"`
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// Counts summarises the document without revealing its content.
type Counts struct {
	Users      int `json:"users"`
	VaultItems int `json:"vault_items"`
	Alerts     int `json:"alerts"`
	Activity   int `json:"activity"`
}

// Header is the cleartext, HMAC-covered preamble of a backup.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	KDF       KDFParams `json:"kdf"`
	Counts    Counts    `json:"counts"`
}

// writeHeader writes the magic number, header length and header JSON.
func writeHeader(w io.Writer, h *Header) error {
	if _, err := w.Write(MagicNumber[:]); err != nil {
		return fmt.Errorf("backup: failed to write magic number: %w", err)
	}
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("backup: failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("backup: failed to write header length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("backup: failed to write header: %w", err)
	}
	return nil
}

// readHeader validates the magic number and decodes the header.
func readHeader(r io.Reader) (*Header, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, ErrInvalidMagic
	}
	if magic != MagicNumber {
		return nil, ErrInvalidMagic
	}

	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, ErrTruncated
	}
	if n > maxHeaderLen {
		return nil, fmt.Errorf("backup: header too large: %d bytes", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, ErrTruncated
	}

	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("backup: failed to unmarshal header: %w", err)
	}
	if h.Version < 1 || h.Version > FormatVersion {
		return nil, fmt.Errorf("%w: got %d, max supported %d", ErrUnsupportedVersion, h.Version, FormatVersion)
	}
	return &h, nil
}
