package repository

import (
	"context"

	"identity-plane/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	// SetMfaState moves the user's TOTP lifecycle state. Persisted on the user
	// row so login can gate on it without a second lookup.
	SetMfaState(ctx context.Context, userID string, state domain.MfaState) error
}
