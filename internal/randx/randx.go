// Package randx provides helpers for generating opaque token secrets and
// their storage digests. Raw secrets go to the caller exactly once; only
// the sha256 digest is ever persisted.
package randx

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// NewSecret generates size random bytes and returns them base64url-encoded.
// 32 bytes gives 256 bits of entropy, which is what both refresh and
// password-reset secrets use.
func NewSecret(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	Wipe(b)
	return s, nil
}

// Digest returns the hex-encoded sha256 digest of a raw secret. This is the
// only form in which a secret may be stored.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Wipe overwrites the contents of the provided byte slice with zeros.
// Useful for removing sensitive material from memory after use.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
