package backup

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/forest6511/sentrivault/pkg/crypto"
)

const (
	// SaltLength is the Argon2id salt length. A fresh salt is drawn per backup.
	SaltLength = 32

	// HMACLength is the size of the trailing HMAC-SHA256.
	HMACLength = 32
)

const (
	hkdfInfoEncryption = "sentrivault-backup-encryption"
	hkdfInfoMAC        = "sentrivault-backup-mac"
)

func newSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("backup: failed to generate salt: %w", err)
	}
	return salt, nil
}

// deriveKeys stretches password with Argon2id and splits the result into
// independent encryption and MAC keys.
func deriveKeys(password, salt []byte) (encKey, macKey []byte, err error) {
	if len(password) == 0 {
		return nil, nil, ErrEmptyPassword
	}

	master := crypto.DeriveKey(password, salt)
	defer crypto.SecureWipe(master)

	encKey, err = crypto.DeriveSubkey(master, hkdfInfoEncryption)
	if err != nil {
		return nil, nil, fmt.Errorf("backup: failed to derive encryption key: %w", err)
	}
	macKey, err = crypto.DeriveSubkey(master, hkdfInfoMAC)
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, fmt.Errorf("backup: failed to derive MAC key: %w", err)
	}
	return encKey, macKey, nil
}

// seal returns nonce || AES-256-GCM ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	ciphertext, nonce, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("backup: encryption failed: %w", err)
	}
	return append(nonce, ciphertext...), nil
}

func open(key, data []byte) ([]byte, error) {
	if len(data) < crypto.NonceLength {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := crypto.Decrypt(key, data[crypto.NonceLength:], data[:crypto.NonceLength])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func computeHMAC(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func verifyHMAC(key, data, expected []byte) bool {
	return hmac.Equal(computeHMAC(key, data), expected)
}
