package repository

import (
	"context"

	"identity-plane/internal/mfa/domain"
)

// Repository defines persistence for TOTP secrets and backup codes.
type Repository interface {
	// GetTOTPSecret returns the user's secret (confirmed or pending), or nil.
	GetTOTPSecret(ctx context.Context, userID string) (*domain.TOTPSecret, error)
	// UpsertPendingTOTPSecret installs a fresh unconfirmed secret, replacing
	// any previous pending one. It must not overwrite a confirmed secret.
	UpsertPendingTOTPSecret(ctx context.Context, s *domain.TOTPSecret) error
	// ConfirmTOTPSecret marks the user's secret confirmed.
	ConfirmTOTPSecret(ctx context.Context, userID string) error
	// DeleteTOTPSecret removes the secret, confirmed or not.
	DeleteTOTPSecret(ctx context.Context, userID string) error

	// ReplaceBackupCodes deletes the user's existing set and installs codes.
	ReplaceBackupCodes(ctx context.Context, userID string, codes []*domain.BackupCode) error
	// ConsumeBackupCode marks the matching unconsumed code as used. The
	// check-and-mark is a single conditional UPDATE, so two concurrent
	// presentations of the same code admit exactly one. Returns false when no
	// usable code matched.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
	// DeleteBackupCodes removes the user's whole set (on TOTP disable).
	DeleteBackupCodes(ctx context.Context, userID string) error
}
