// Package oauth brokers authorization-code logins against external identity
// providers and maps the remote account onto a local user.
package oauth

import "context"

// Token is the provider access token obtained from the code exchange.
type Token struct {
	AccessToken string
	TokenType   string
	Scope       string
}

// RemoteUser is the subset of the provider profile the broker needs to map
// or provision a local account.
type RemoteUser struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
}

// Provider is one authorization-code endpoint set. Implementations carry
// their own HTTP client and credentials; the broker owns state handling.
type Provider interface {
	Name() string
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (Token, error)
	FetchUser(ctx context.Context, token Token) (RemoteUser, error)
}
