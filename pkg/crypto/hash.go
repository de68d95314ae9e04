package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// HashSecret returns the hex SHA-256 digest of the NFC-normalised secret.
//
// There is no per-record salt: identical passwords produce identical digests
// across users. Stored digests depend on this, so changing it breaks existing
// stores.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(norm.NFC.String(secret)))
	return hex.EncodeToString(sum[:])
}

// MatchSecret reports whether secret hashes to digest.
func MatchSecret(secret, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(secret)), []byte(digest)) == 1
}
