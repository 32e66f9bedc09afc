package repository

import (
	"context"
	"time"

	"identity-plane/internal/apikey/domain"
)

// Repository defines persistence for API keys.
type Repository interface {
	Create(ctx context.Context, k *domain.ApiKey) error
	GetByID(ctx context.Context, id string) (*domain.ApiKey, error)
	// GetBySecretHash is the authentication lookup: hashes are unique, so the
	// presented secret resolves to at most one key.
	GetBySecretHash(ctx context.Context, secretHash string) (*domain.ApiKey, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.ApiKey, error)
	Revoke(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}
