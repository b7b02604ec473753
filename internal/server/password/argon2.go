// Package password provides the password hashing primitive (Argon2id) and
// the password policy check. The services only dictate when hashing is
// invoked; the algorithm lives here behind the Hasher interface.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher hashes secrets for storage and verifies candidates against a
// stored digest.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Params are the Argon2id cost factors.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams are balanced for a typical small server container.
var DefaultParams = &Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

type argon2Hasher struct {
	params *Params
}

// NewArgon2Hasher constructs an Argon2id-backed Hasher.
func NewArgon2Hasher(p *Params) Hasher {
	if p == nil {
		p = DefaultParams
	}
	return &argon2Hasher{params: p}
}

// Hash derives an Argon2id digest with a fresh random salt and encodes it
// in PHC format, so the parameters travel with the hash.
func (h *argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt generation error: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt,
		h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism, b64Salt, b64Hash)

	return encoded, nil
}

// Verify re-derives the key with the parameters embedded in encodedHash and
// compares in constant time.
func (h *argon2Hasher) Verify(password, encodedHash string) (bool, error) {
	p, salt, hash, err := decodeHash(encodedHash)
	if err != nil {
		return false, fmt.Errorf("invalid hash format: %w", err)
	}

	otherHash := argon2.IDKey([]byte(password), salt,
		p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}

func decodeHash(encodedHash string) (p *Params, salt, hash []byte, err error) {
	vals := strings.Split(encodedHash, "$")
	if len(vals) != 6 {
		return nil, nil, nil, fmt.Errorf("hash has wrong number of parts")
	}
	if vals[1] != "argon2id" {
		return nil, nil, nil, fmt.Errorf("unsupported algorithm %q", vals[1])
	}

	var version int
	if _, err = fmt.Sscanf(vals[2], "v=%d", &version); err != nil {
		return nil, nil, nil, err
	}
	if version != argon2.Version {
		return nil, nil, nil, fmt.Errorf("incompatible argon2 version %d", version)
	}

	p = &Params{}
	if _, err = fmt.Sscanf(vals[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return nil, nil, nil, err
	}

	if salt, err = base64.RawStdEncoding.DecodeString(vals[4]); err != nil {
		return nil, nil, nil, err
	}
	if hash, err = base64.RawStdEncoding.DecodeString(vals[5]); err != nil {
		return nil, nil, nil, err
	}
	p.KeyLength = uint32(len(hash))

	return p, salt, hash, nil
}
