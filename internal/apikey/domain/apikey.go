// Package domain holds the API key entity and its scope semantics.
package domain

import (
	"strings"
	"time"
)

// ApiKey is a long-lived machine credential scoped to one tenant. The raw
// secret is shown once at creation; only its SHA-256 hash is stored, plus a
// short prefix so users can tell keys apart.
type ApiKey struct {
	ID         string
	TenantID   string
	UserID     string
	Name       string
	Prefix     string
	SecretHash string // hex SHA-256 of the full secret, never exposed
	Scopes     []string
	ExpiresAt  *time.Time // nil = never expires
	RevokedAt  *time.Time // nil while active
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the key may authenticate at time now.
func (k *ApiKey) Usable(now time.Time) bool {
	if k == nil || k.RevokedAt != nil {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}

// ScopeAllows reports whether the granted scopes cover required. A grant
// covers it by exact match, as a namespace wildcard ("files:*" covers
// "files:read"), or globally ("*"). An empty required scope is never covered;
// operations must name what they need.
func ScopeAllows(granted []string, required string) bool {
	if required == "" {
		return false
	}
	for _, g := range granted {
		if g == "*" || g == required {
			return true
		}
		if ns, ok := strings.CutSuffix(g, ":*"); ok && ns != "" && strings.HasPrefix(required, ns+":") {
			return true
		}
	}
	return false
}
