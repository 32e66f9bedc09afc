// Package service implements API key issuance, validation, revocation and listing.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"identity-plane/internal/apikey/domain"
	"identity-plane/internal/security"
)

// Sentinel errors for the API key service; the handler maps them to HTTP statuses.
var (
	ErrInvalidKey  = errors.New("invalid api key")
	ErrKeyNotFound = errors.New("api key not found")
	ErrWrongTenant = errors.New("api key belongs to another tenant")
	ErrScopeDenied = errors.New("api key scope does not cover the operation")
)

// secretPrefix marks raw secrets as this service's API keys.
const secretPrefix = "ipk_"

// displayPrefixLen is how many leading characters of the raw secret are kept
// for display. Enough to tell keys apart, far too short to guess the rest.
const displayPrefixLen = 12

// secretBytes is the entropy of the random part, base64url-encoded to 43 chars.
const secretBytes = 32

// CreateResult pairs the stored key with its raw secret, which is returned to
// the caller exactly once and never persisted.
type CreateResult struct {
	Key    *domain.ApiKey
	Secret string
}

// Repo is the persistence needed by the API key service.
type Repo interface {
	Create(ctx context.Context, k *domain.ApiKey) error
	GetByID(ctx context.Context, id string) (*domain.ApiKey, error)
	GetBySecretHash(ctx context.Context, secretHash string) (*domain.ApiKey, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.ApiKey, error)
	Revoke(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// ApiKeyService issues and validates tenant-scoped API keys.
type ApiKeyService struct {
	repo Repo
}

// NewApiKeyService returns an ApiKeyService backed by repo.
func NewApiKeyService(repo Repo) *ApiKeyService {
	return &ApiKeyService{repo: repo}
}

// Create mints a key for the tenant and user. The returned secret is shown
// once; only its hash and display prefix are stored.
func (s *ApiKeyService) Create(ctx context.Context, tenantID, userID, name string, scopes []string, expiresAt *time.Time) (*CreateResult, error) {
	random, err := security.GenerateOpaqueToken(secretBytes)
	if err != nil {
		return nil, err
	}
	secret := secretPrefix + random
	key := &domain.ApiKey{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		UserID:     userID,
		Name:       strings.TrimSpace(name),
		Prefix:     secret[:displayPrefixLen],
		SecretHash: security.HashOpaqueToken(secret),
		Scopes:     scopes,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}
	return &CreateResult{Key: key, Secret: secret}, nil
}

// Validate authenticates a raw secret and checks it covers requiredScope.
// tenantHint, when non-empty, is the tenant already established for the
// request; a key from another tenant is rejected as ErrWrongTenant rather
// than ErrInvalidKey, since the key itself is genuine.
func (s *ApiKeyService) Validate(ctx context.Context, rawSecret, requiredScope, tenantHint string) (*domain.ApiKey, error) {
	if !strings.HasPrefix(rawSecret, secretPrefix) {
		return nil, ErrInvalidKey
	}
	key, err := s.repo.GetBySecretHash(ctx, security.HashOpaqueToken(rawSecret))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if key == nil || !key.Usable(now) {
		return nil, ErrInvalidKey
	}
	if tenantHint != "" && key.TenantID != tenantHint {
		return nil, ErrWrongTenant
	}
	if !domain.ScopeAllows(key.Scopes, requiredScope) {
		return nil, ErrScopeDenied
	}
	_ = s.repo.TouchLastUsed(ctx, key.ID, now)
	return key, nil
}

// Revoke disables the key. Revoking an already revoked key succeeds; another
// tenant's key is refused with ErrWrongTenant.
func (s *ApiKeyService) Revoke(ctx context.Context, tenantID, id string) error {
	key, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if key == nil {
		return ErrKeyNotFound
	}
	if key.TenantID != tenantID {
		return ErrWrongTenant
	}
	if key.RevokedAt != nil {
		return nil
	}
	return s.repo.Revoke(ctx, id)
}

// List returns the tenant's keys. Secret hashes stay internal; the handler
// serializes only the display fields.
func (s *ApiKeyService) List(ctx context.Context, tenantID string) ([]*domain.ApiKey, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}
