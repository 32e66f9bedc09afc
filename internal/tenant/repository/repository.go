package repository

import (
	"context"

	"identity-plane/internal/tenant/domain"
)

// Repository defines persistence for tenants.
type Repository interface {
	GetTenantByID(ctx context.Context, id string) (*domain.Tenant, error)
	CreateTenant(ctx context.Context, t *domain.Tenant) error
	UpdateTenant(ctx context.Context, t *domain.Tenant) error
}
