// Package backup writes and reads password-protected copies of the record
// store document.
//
// Layout:
//
//	magic "SNTV_BKP" | header length (uint32 BE) | header JSON
//	| ciphertext length (uint32 BE) | nonce || AES-256-GCM(document JSON)
//	| HMAC-SHA256(everything before it)
//
// The backup password is stretched with Argon2id under a fresh salt and split
// with HKDF into separate encryption and MAC keys, so a backup never shares
// key material with the live store.
package backup

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/forest6511/sentrivault/pkg/crypto"
	"github.com/forest6511/sentrivault/pkg/store"
)

// maxBackupSize bounds how much of an untrusted reader is consumed.
const maxBackupSize = 256 * 1024 * 1024

// Option configures Create.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Create encrypts doc under password and writes the backup to w.
func Create(w io.Writer, doc *store.Document, password []byte, opts ...Option) error {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}

	if doc == nil {
		return fmt.Errorf("backup: document is required")
	}
	salt, err := newSalt()
	if err != nil {
		return err
	}
	encKey, macKey, err := deriveKeys(password, salt)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("backup: failed to marshal document: %w", err)
	}
	defer crypto.SecureWipe(plaintext)

	ciphertext, err := seal(encKey, plaintext)
	if err != nil {
		return err
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: o.now(),
		KDF: KDFParams{
			Salt:        salt,
			Memory:      crypto.Argon2Memory,
			Iterations:  crypto.Argon2Time,
			Parallelism: crypto.Argon2Threads,
		},
		Counts: Counts{
			Users:      len(doc.Users),
			VaultItems: len(doc.VaultItems),
			Alerts:     len(doc.SecurityAlerts),
			Activity:   len(doc.ActivityLogs),
		},
	}

	// Buffer everything so the HMAC covers exactly what is written.
	var buf bytes.Buffer
	if err := writeHeader(&buf, header); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(ciphertext))); err != nil {
		return fmt.Errorf("backup: failed to write ciphertext length: %w", err)
	}
	buf.Write(ciphertext)
	buf.Write(computeHMAC(macKey, buf.Bytes()))

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("backup: failed to write backup: %w", err)
	}
	return nil
}

// Restore verifies and decrypts a backup read from r.
func Restore(r io.Reader, password []byte) (*Header, *store.Document, error) {
	header, plaintext, err := verifyAndDecrypt(r, password)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(plaintext)

	var doc store.Document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, nil, fmt.Errorf("backup: failed to unmarshal document: %w", err)
	}
	return header, &doc, nil
}

// Inspect returns the header without verifying or decrypting the payload.
func Inspect(r io.Reader) (*Header, error) {
	return readHeader(r)
}

func verifyAndDecrypt(r io.Reader, password []byte) (*Header, []byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBackupSize))
	if err != nil {
		return nil, nil, fmt.Errorf("backup: failed to read backup: %w", err)
	}

	reader := bytes.NewReader(data)
	header, err := readHeader(reader)
	if err != nil {
		return nil, nil, err
	}

	var n uint32
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return nil, nil, ErrTruncated
	}
	if uint64(reader.Len()) < uint64(n)+HMACLength {
		return nil, nil, ErrTruncated
	}
	bodyEnd := len(data) - reader.Len() + int(n)
	ciphertext := data[bodyEnd-int(n) : bodyEnd]
	stored := data[bodyEnd : bodyEnd+HMACLength]

	encKey, macKey, err := deriveKeys(password, header.KDF.Salt)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	if !verifyHMAC(macKey, data[:bodyEnd], stored) {
		return nil, nil, ErrIntegrityFailed
	}

	plaintext, err := open(encKey, ciphertext)
	if err != nil {
		return nil, nil, err
	}
	return header, plaintext, nil
}
