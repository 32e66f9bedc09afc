package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"identity-plane/internal/cache"
	identitydomain "identity-plane/internal/identity/domain"
	identityservice "identity-plane/internal/identity/service"
	"identity-plane/internal/security"
	tenantdomain "identity-plane/internal/tenant/domain"
	userdomain "identity-plane/internal/user/domain"
)

// Sentinel errors for the OAuth broker; the handler maps them to HTTP statuses.
var (
	ErrUnknownProvider  = errors.New("unknown oauth provider")
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrTenantSuspended  = errors.New("tenant is suspended")
	ErrInvalidState     = errors.New("invalid or expired oauth state")
	ErrExchangeFailed   = errors.New("oauth code exchange failed")
	ErrEmailUnavailable = errors.New("provider supplied no verified email")
	ErrWrongTenant      = errors.New("identity belongs to another tenant")
)

const nonceKindOAuth = "oauth"

// UserRepo is the minimal user repository needed by the broker.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// IdentityRepo is the minimal identity repository needed by the broker.
type IdentityRepo interface {
	GetByProviderID(ctx context.Context, provider identitydomain.IdentityProvider, providerID string) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// TenantRepo is the minimal tenant repository needed by the broker.
type TenantRepo interface {
	GetTenantByID(ctx context.Context, id string) (*tenantdomain.Tenant, error)
}

// SessionIssuer turns a resolved user into a session. The auth service
// implements it and applies the same guards as a password login, including
// the MFA gate.
type SessionIssuer interface {
	LoginOAuth(ctx context.Context, user *userdomain.User, ip, userAgent string) (*identityservice.AuthResult, error)
}

// Broker drives the authorization-code flow end to end: signed single-use
// state out, callback validation, remote profile mapping, then session
// issuance through the auth service.
type Broker struct {
	providers  map[string]Provider
	users      UserRepo
	identities IdentityRepo
	tenants    TenantRepo
	sessions   SessionIssuer
	tokens     *security.TokenProvider
	nonces     *cache.NonceStore
	stateTTL   time.Duration
}

// NewBroker creates a Broker over the given providers, keyed by Provider.Name.
func NewBroker(providers []Provider, users UserRepo, identities IdentityRepo, tenants TenantRepo, sessions SessionIssuer, tokens *security.TokenProvider, nonces *cache.NonceStore, stateTTL time.Duration) *Broker {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Broker{
		providers:  byName,
		users:      users,
		identities: identities,
		tenants:    tenants,
		sessions:   sessions,
		tokens:     tokens,
		nonces:     nonces,
		stateTTL:   stateTTL,
	}
}

// Initiate returns the provider authorization URL carrying a signed state
// token bound to the tenant and the provider.
func (b *Broker) Initiate(ctx context.Context, providerName, tenantID string) (string, error) {
	p, ok := b.providers[providerName]
	if !ok {
		return "", ErrUnknownProvider
	}
	if err := b.guardTenant(ctx, tenantID); err != nil {
		return "", err
	}
	state, _, err := b.tokens.IssuePurpose(security.PurposeOAuthState, "", tenantID, providerName, b.stateTTL)
	if err != nil {
		return "", err
	}
	return p.AuthURL(state), nil
}

// HandleCallback validates and consumes the state, exchanges the code, maps
// the remote account onto a local user and issues a session. The state jti is
// burned before the exchange, so a failed exchange still invalidates it.
func (b *Broker) HandleCallback(ctx context.Context, providerName, code, state, ip, userAgent string) (*identityservice.AuthResult, error) {
	p, ok := b.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}
	claims, err := b.tokens.ValidatePurpose(state, security.PurposeOAuthState)
	if err != nil {
		return nil, ErrInvalidState
	}
	if claims.Provider != providerName {
		return nil, ErrInvalidState
	}
	first, err := b.nonces.Consume(ctx, nonceKindOAuth, claims.ID, b.stateTTL)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrInvalidState
	}
	if err := b.guardTenant(ctx, claims.TenantID); err != nil {
		return nil, err
	}

	token, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	remote, err := p.FetchUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	user, err := b.resolveUser(ctx, identitydomain.IdentityProvider(providerName), remote, claims.TenantID)
	if err != nil {
		return nil, err
	}
	return b.sessions.LoginOAuth(ctx, user, ip, userAgent)
}

// resolveUser maps the remote account onto a local user: by provider account
// id first, then by verified email, otherwise a fresh user is provisioned in
// the state's tenant.
func (b *Broker) resolveUser(ctx context.Context, provider identitydomain.IdentityProvider, remote RemoteUser, tenantID string) (*userdomain.User, error) {
	if remote.ID == "" {
		return nil, fmt.Errorf("%w: empty provider account id", ErrExchangeFailed)
	}
	ident, err := b.identities.GetByProviderID(ctx, provider, remote.ID)
	if err != nil {
		return nil, err
	}
	if ident != nil {
		user, err := b.users.GetByID(ctx, ident.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("identity %s has no user", ident.ID)
		}
		if user.TenantID != tenantID {
			return nil, ErrWrongTenant
		}
		return user, nil
	}

	if remote.Email == "" || !remote.EmailVerified {
		return nil, ErrEmailUnavailable
	}
	email := userdomain.NormalizeEmail(remote.Email)

	user, err := b.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if user != nil {
		if user.TenantID != tenantID {
			return nil, ErrWrongTenant
		}
	} else {
		user = &userdomain.User{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			Email:     email,
			Name:      remote.Name,
			Roles:     []string{"member"},
			Status:    userdomain.UserStatusActive,
			MfaState:  userdomain.MfaStateNone,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := user.Validate(); err != nil {
			return nil, err
		}
		if err := b.users.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	link := &identitydomain.Identity{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		Provider:   provider,
		ProviderID: remote.ID,
		CreatedAt:  now,
	}
	if err := b.identities.Create(ctx, link); err != nil {
		return nil, err
	}
	return user, nil
}

func (b *Broker) guardTenant(ctx context.Context, tenantID string) error {
	tenant, err := b.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return ErrTenantNotFound
	}
	if !tenant.Active() {
		return ErrTenantSuspended
	}
	return nil
}
