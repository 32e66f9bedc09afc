package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// GenerateOpaqueToken returns n bytes from crypto/rand, base64url-encoded
// without padding. Used for refresh secrets and API key secrets.
func GenerateOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashOpaqueToken returns hex SHA-256(token). For high-entropy secrets that
// need a deterministic lookup key (API key secrets); low-entropy inputs such
// as passwords go through the argon2id Hasher instead.
func HashOpaqueToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// NewRefreshSalt returns a fresh 16-byte salt, hex-encoded. A new salt is
// drawn on every issue and rotation.
func NewRefreshSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashRefreshSecret returns hex SHA-256(salt || secret). Only this digest is
// stored; the raw secret exists nowhere server-side.
func HashRefreshSecret(salt, secret string) string {
	h := sha256.Sum256([]byte(salt + secret))
	return hex.EncodeToString(h[:])
}

// RefreshHashEqual performs constant-time comparison of the presented secret's
// salted hash with the stored hash. Returns true only if they match.
func RefreshHashEqual(salt, secret, storedHash string) bool {
	got := HashRefreshSecret(salt, secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}

// EncodeRefreshToken builds the wire form "<session id>.<secret>". The session
// id half locates the row; the secret half proves possession.
func EncodeRefreshToken(sessionID, secret string) string {
	return sessionID + "." + secret
}

// ParseRefreshToken splits a wire-form refresh token into its session id and
// secret halves. Returns ok=false when the token is not two non-empty parts.
func ParseRefreshToken(token string) (sessionID, secret string, ok bool) {
	sessionID, secret, found := strings.Cut(token, ".")
	if !found || sessionID == "" || secret == "" {
		return "", "", false
	}
	return sessionID, secret, true
}
