package repository

import (
	"context"

	"identity-plane/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	// ListByTenant returns the tenant's events, newest first.
	ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.Event, error)
}
