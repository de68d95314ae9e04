package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
)

// envelopeMagic prefixes every sealed blob so foreign data is rejected early.
var envelopeMagic = []byte("SV1")

// Sealer encrypts JSON documents under a single passphrase.
//
// Key derivation is expensive, so a Sealer reuses one salt for everything it
// seals and caches the keys it derives for salts it has opened. Nonces are
// always fresh.
type Sealer struct {
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	keys map[string][]byte
}

// NewSealer returns a Sealer for passphrase.
func NewSealer(passphrase string) *Sealer {
	return &Sealer{
		passphrase: []byte(passphrase),
		keys:       make(map[string][]byte),
	}
}

// Seal encrypts plaintext and returns the base64 envelope.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	if len(s.passphrase) == 0 {
		return "", ErrEmptyPassphrase
	}

	s.mu.Lock()
	if s.salt == nil {
		salt := make([]byte, SaltLength)
		if _, err := rand.Read(salt); err != nil {
			s.mu.Unlock()
			return "", fmt.Errorf("crypto: failed to generate salt: %w", err)
		}
		s.salt = salt
	}
	salt := s.salt
	key := s.keyLocked(salt)
	s.mu.Unlock()

	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		return "", err
	}

	buf := make([]byte, 0, len(envelopeMagic)+SaltLength+NonceLength+len(ciphertext))
	buf = append(buf, envelopeMagic...)
	buf = append(buf, salt...)
	buf = append(buf, nonce...)
	buf = append(buf, ciphertext...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts an envelope produced by Seal.
func (s *Sealer) Open(envelope string) ([]byte, error) {
	if len(s.passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	header := len(envelopeMagic) + SaltLength + NonceLength
	if len(raw) < header || !bytes.Equal(raw[:len(envelopeMagic)], envelopeMagic) {
		return nil, ErrMalformedEnvelope
	}

	salt := raw[len(envelopeMagic) : len(envelopeMagic)+SaltLength]
	nonce := raw[len(envelopeMagic)+SaltLength : header]

	s.mu.Lock()
	key := s.keyLocked(salt)
	s.mu.Unlock()

	return Decrypt(key, raw[header:], nonce)
}

// SealJSON marshals v and seals the result.
func (s *Sealer) SealJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("crypto: failed to marshal value: %w", err)
	}
	return s.Seal(data)
}

// OpenJSON opens envelope and unmarshals the plaintext into v.
func (s *Sealer) OpenJSON(envelope string, v any) error {
	data, err := s.Open(envelope)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("crypto: failed to unmarshal value: %w", err)
	}
	return nil
}

// MasterKey returns the Argon2id key for the passphrase and salt, for uses
// other than sealing such as the ledger HMAC. Callers persist salt themselves.
func (s *Sealer) MasterKey(salt []byte) ([]byte, error) {
	if len(s.passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("crypto: salt must be %d bytes, got %d", SaltLength, len(salt))
	}

	s.mu.Lock()
	key := s.keyLocked(salt)
	s.mu.Unlock()
	return bytes.Clone(key), nil
}

// keyLocked must be called with s.mu held.
func (s *Sealer) keyLocked(salt []byte) []byte {
	if key, ok := s.keys[string(salt)]; ok {
		return key
	}
	key := DeriveKey(s.passphrase, salt)
	s.keys[string(salt)] = key
	return key
}
