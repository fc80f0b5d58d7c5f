// Package crypto implements password hashing for stored accounts.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the size of a per-user salt.
const SaltLen = 16

// Hasher derives Argon2id password hashes with fixed cost parameters.
type Hasher struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultHasher uses server-side production costs.
var DefaultHasher = Hasher{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash derives a hash for password with a freshly generated salt.
func (h Hasher) Hash(password []byte) (hash, salt []byte, err error) {
	if len(password) == 0 {
		return nil, nil, errors.New("empty password")
	}
	salt, err = RandBytes(SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return h.derive(password, salt), salt, nil
}

// Verify reports whether password matches the expected hash under salt.
func (h Hasher) Verify(password, salt, expected []byte) bool {
	if len(password) == 0 || len(expected) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(h.derive(password, salt), expected) == 1
}

func (h Hasher) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.Time, h.Memory, h.Threads, h.KeyLen)
}
