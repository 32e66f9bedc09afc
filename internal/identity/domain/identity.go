package domain

import "time"

// Identity represents a user's linked credential (local password or an OAuth
// provider account). A user has at most one local identity; OAuth identities
// are unique by (provider, provider id).
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string // empty unless local
	CreatedAt    time.Time
}

type IdentityProvider string

const (
	IdentityProviderLocal  IdentityProvider = "local"
	IdentityProviderGithub IdentityProvider = "github"
	IdentityProviderGoogle IdentityProvider = "google"
)

// KnownOAuthProvider reports whether name is an OAuth provider this service brokers.
func KnownOAuthProvider(name string) bool {
	switch IdentityProvider(name) {
	case IdentityProviderGithub, IdentityProviderGoogle:
		return true
	default:
		return false
	}
}
