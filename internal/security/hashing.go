package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash is returned when a stored password hash cannot be parsed.
var ErrInvalidHash = errors.New("invalid password hash")

// ErrPasswordMismatch is returned by Compare when the password does not match.
var ErrPasswordMismatch = errors.New("password mismatch")

const (
	hashSaltLen = 16
	hashKeyLen  = 32
)

// Hasher hashes and verifies passwords using argon2id. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8

	dummy string
}

// NewHasher returns a Hasher with the given argon2id parameters. Zero values
// fall back to 64 MiB, 3 iterations, 1 lane.
func NewHasher(memoryKiB, iterations, parallelism int) *Hasher {
	if memoryKiB <= 0 {
		memoryKiB = 64 * 1024
	}
	if iterations <= 0 {
		iterations = 3
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	h := &Hasher{
		MemoryKiB:   uint32(memoryKiB),
		Iterations:  uint32(iterations),
		Parallelism: uint8(parallelism),
	}
	// A throwaway hash verified for unknown users so lookup misses cost the
	// same work as a real mismatch.
	dummy := make([]byte, 32)
	_, _ = rand.Read(dummy)
	h.dummy, _ = h.Hash(dummy)
	return h
}

// Hash produces an argon2id hash of password in PHC string format
// ($argon2id$v=19$m=..,t=..,p=..$salt$key) suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, h.Iterations, h.MemoryKiB, h.Parallelism, hashKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.MemoryKiB, h.Iterations, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare verifies password against the stored PHC hash using the parameters
// recorded in the hash and a constant-time comparison. Returns nil if they
// match, ErrPasswordMismatch if they do not, ErrInvalidHash on a bad encoding.
func (h *Hasher) Compare(hash string, password []byte) error {
	memory, iterations, parallelism, salt, key, err := parsePHC(hash)
	if err != nil {
		return err
	}
	got := argon2.IDKey(password, salt, iterations, memory, parallelism, uint32(len(key)))
	if subtle.ConstantTimeCompare(got, key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// CompareDummy burns the same argon2id work as a real comparison. Used on
// unknown-user logins so failures are uniform with wrong-password failures.
func (h *Hasher) CompareDummy(password []byte) {
	_ = h.Compare(h.dummy, password)
}

// NeedsRehash reports whether the stored hash was produced with parameters
// weaker than the Hasher's current ones. Callers rehash on the next successful
// verification.
func (h *Hasher) NeedsRehash(hash string) bool {
	memory, iterations, parallelism, _, _, err := parsePHC(hash)
	if err != nil {
		return true
	}
	return memory < h.MemoryKiB || iterations < h.Iterations || parallelism < h.Parallelism
}

func parsePHC(hash string) (memory, iterations uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	var p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &p); err != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	parallelism = uint8(p)
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	return memory, iterations, parallelism, salt, key, nil
}
