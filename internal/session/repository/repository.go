package repository

import (
	"context"
	"errors"
	"time"

	"identity-plane/internal/session/domain"
)

var (
	// ErrNotFound is returned by Rotate when the session is missing, revoked or expired.
	ErrNotFound = errors.New("session not found")
	// ErrSecretMismatch is returned by Rotate when the presented secret does not
	// hash to the stored value. A well-formed token that mismatches means an
	// older generation was replayed: the reuse signal.
	ErrSecretMismatch = errors.New("refresh secret mismatch")
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	// RevokeAllByUserExcept revokes every session of the user but keepID (the
	// one performing a password change).
	RevokeAllByUserExcept(ctx context.Context, userID, keepID string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	// Rotate verifies the presented secret against the stored salted hash and,
	// when it matches, installs the new salt, hash and expiry. The whole
	// check-and-swap runs under a row lock so concurrent rotations of the same
	// session admit exactly one winner; losers get ErrSecretMismatch.
	Rotate(ctx context.Context, id, presentedSecret, newSalt, newHash string, newExpiresAt time.Time) (*domain.Session, error)
}
