package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	key := DeriveKey([]byte("passphrase"), salt)
	if len(key) != KeyLength {
		t.Fatalf("DeriveKey() length = %d, want %d", len(key), KeyLength)
	}
	if !bytes.Equal(key, DeriveKey([]byte("passphrase"), salt)) {
		t.Error("DeriveKey() with same inputs should produce identical keys")
	}
	if bytes.Equal(key, DeriveKey([]byte("other"), salt)) {
		t.Error("DeriveKey() with different password should produce different key")
	}
}

func TestDeriveSubkey(t *testing.T) {
	master := randomKey(t)

	a, err := DeriveSubkey(master, "audit")
	if err != nil {
		t.Fatalf("DeriveSubkey() error = %v", err)
	}
	b, err := DeriveSubkey(master, "backup")
	if err != nil {
		t.Fatalf("DeriveSubkey() error = %v", err)
	}
	if len(a) != KeyLength {
		t.Errorf("DeriveSubkey() length = %d, want %d", len(a), KeyLength)
	}
	if bytes.Equal(a, b) {
		t.Error("subkeys with different info should differ")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randomKey(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("a")},
		{"json", []byte(`{"users":[]}`)},
		{"binary", []byte{0x00, 0xff, 0x10, 0x80}},
		{"large", bytes.Repeat([]byte("x"), 64*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, nonce, err := Encrypt(key, tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(nonce) != NonceLength {
				t.Errorf("nonce length = %d, want %d", len(nonce), NonceLength)
			}
			got, err := Decrypt(key, ciphertext, nonce)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("Decrypt() = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestEncryptInvalidKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 24, 48} {
		if _, _, err := Encrypt(make([]byte, n), []byte("x")); err != ErrInvalidKeyLength {
			t.Errorf("Encrypt() with %d-byte key error = %v, want %v", n, err, ErrInvalidKeyLength)
		}
	}
}

func TestDecryptFailures(t *testing.T) {
	key := randomKey(t)
	ciphertext, nonce, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xff

	tests := []struct {
		name       string
		key        []byte
		ciphertext []byte
		nonce      []byte
		want       error
	}{
		{"wrong key", randomKey(t), ciphertext, nonce, ErrDecryptionFailed},
		{"tampered", key, tampered, nonce, ErrDecryptionFailed},
		{"short nonce", key, ciphertext, nonce[:4], ErrInvalidNonceLength},
		{"short key", key[:16], ciphertext, nonce, ErrInvalidKeyLength},
		{"short ciphertext", key, []byte{1, 2, 3}, nonce, ErrCiphertextTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(tt.key, tt.ciphertext, tt.nonce); err != tt.want {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSealerJSONRoundTrip(t *testing.T) {
	s := NewSealer("sentrivault_secret_key_2024")

	type record struct {
		ID    string            `json:"id"`
		Tags  []string          `json:"tags"`
		Attrs map[string]string `json:"attrs"`
		N     int               `json:"n"`
	}

	values := []any{
		map[string]any{"users": []any{}, "currentUser": nil},
		record{ID: "1", Tags: []string{"a", "b"}, Attrs: map[string]string{"k": "v"}, N: 42},
		"plain string with unicode: ü日本",
		[]int{1, 2, 3},
	}

	for _, v := range values {
		blob, err := s.SealJSON(v)
		if err != nil {
			t.Fatalf("SealJSON(%v) error = %v", v, err)
		}

		out := reflect.New(reflect.TypeOf(v))
		if err := s.OpenJSON(blob, out.Interface()); err != nil {
			t.Fatalf("OpenJSON() error = %v", err)
		}
		if !reflect.DeepEqual(out.Elem().Interface(), v) {
			t.Errorf("round trip = %#v, want %#v", out.Elem().Interface(), v)
		}
	}
}

func TestSealerOpenWithDifferentInstance(t *testing.T) {
	blob, err := NewSealer("shared").Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	got, err := NewSealer("shared").Open(blob)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Open() = %q, want %q", got, "payload")
	}

	if _, err := NewSealer("other").Open(blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Open() with wrong passphrase error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestSealerOpenMalformed(t *testing.T) {
	s := NewSealer("p")

	tests := []struct {
		name     string
		envelope string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("SV1abc"))},
		{"wrong magic", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("z"), 64))},
		{"legacy cryptojs", "U2FsdGVkX1+abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Open(tt.envelope); !errors.Is(err, ErrMalformedEnvelope) {
				t.Errorf("Open() error = %v, want %v", err, ErrMalformedEnvelope)
			}
		})
	}
}

func TestSealerEmptyPassphrase(t *testing.T) {
	s := NewSealer("")
	if _, err := s.Seal([]byte("x")); err != ErrEmptyPassphrase {
		t.Errorf("Seal() error = %v, want %v", err, ErrEmptyPassphrase)
	}
	if _, err := s.Open("anything"); err != ErrEmptyPassphrase {
		t.Errorf("Open() error = %v, want %v", err, ErrEmptyPassphrase)
	}
}

func TestSealerFreshNonce(t *testing.T) {
	s := NewSealer("p")
	a, err := s.Seal([]byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Seal([]byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("sealing the same plaintext twice should produce different envelopes")
	}
}

func TestHashSecret(t *testing.T) {
	// SHA-256("password")
	const want = "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
	if got := HashSecret("password"); got != want {
		t.Errorf("HashSecret() = %s, want %s", got, want)
	}

	// NFC and NFD forms of "é" hash identically.
	if HashSecret("caf\u00e9") != HashSecret("cafe\u0301") {
		t.Error("HashSecret() should normalise to NFC")
	}

	if !MatchSecret("password", want) {
		t.Error("MatchSecret() = false for matching secret")
	}
	if MatchSecret("Password", want) {
		t.Error("MatchSecret() = true for different secret")
	}
	if strings.ToLower(want) != want {
		t.Error("digest should be lowercase hex")
	}
}

func TestSecureWipe(t *testing.T) {
	data := []byte("sensitive")
	SecureWipe(data)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
	SecureWipe(nil)
}

func TestSealerMasterKey(t *testing.T) {
	s := NewSealer("correct horse")
	salt := []byte("0123456789abcdef")

	key, err := s.MasterKey(salt)
	if err != nil {
		t.Fatalf("MasterKey() error = %v", err)
	}
	if !bytes.Equal(key, DeriveKey([]byte("correct horse"), salt)) {
		t.Error("MasterKey() should be the Argon2id key for passphrase and salt")
	}

	// A bare hash of the passphrase must not reproduce the key.
	plain := sha256.Sum256([]byte("correct horse"))
	if bytes.Equal(key, plain[:]) {
		t.Error("MasterKey() equals SHA-256 of the passphrase")
	}
	prefixed := sha256.Sum256([]byte("sentrivault-master-v1|correct horse"))
	if bytes.Equal(key, prefixed[:]) {
		t.Error("MasterKey() equals prefixed SHA-256 of the passphrase")
	}

	other, err := s.MasterKey([]byte("fedcba9876543210"))
	if err != nil {
		t.Fatalf("MasterKey() error = %v", err)
	}
	if bytes.Equal(key, other) {
		t.Error("MasterKey() with different salts should differ")
	}

	// The returned slice is a copy; wiping it must not poison the cache.
	SecureWipe(key)
	again, err := s.MasterKey(salt)
	if err != nil {
		t.Fatalf("MasterKey() error = %v", err)
	}
	if !bytes.Equal(again, DeriveKey([]byte("correct horse"), salt)) {
		t.Error("MasterKey() returned a wiped cached key")
	}
}

func TestSealerMasterKeyInvalid(t *testing.T) {
	if _, err := NewSealer("pw").MasterKey([]byte("short")); err == nil {
		t.Error("MasterKey() with short salt should fail")
	}
	if _, err := NewSealer("").MasterKey([]byte("0123456789abcdef")); !errors.Is(err, ErrEmptyPassphrase) {
		t.Errorf("MasterKey() with empty passphrase error = %v, want ErrEmptyPassphrase", err)
	}
}
