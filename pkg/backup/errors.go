package backup

import "errors"

var (
	ErrInvalidMagic       = errors.New("backup: invalid file, magic number mismatch")
	ErrUnsupportedVersion = errors.New("backup: unsupported format version")
	ErrTruncated          = errors.New("backup: file truncated")
	ErrIntegrityFailed    = errors.New("backup: integrity check failed, HMAC mismatch")
	ErrDecryptionFailed   = errors.New("backup: decryption failed, invalid password or corrupted data")
	ErrEmptyPassword      = errors.New("backup: password cannot be empty")
)
