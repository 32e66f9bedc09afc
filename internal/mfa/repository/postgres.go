package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-plane/internal/mfa/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an MFA repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetTOTPSecret returns the user's TOTP secret, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetTOTPSecret(ctx context.Context, userID string) (*domain.TOTPSecret, error) {
	const q = `SELECT user_id, secret, confirmed, created_at, confirmed_at FROM totp_secrets WHERE user_id = $1`
	var s domain.TOTPSecret
	err := r.pool.QueryRow(ctx, q, userID).Scan(&s.UserID, &s.Secret, &s.Confirmed, &s.CreatedAt, &s.ConfirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// UpsertPendingTOTPSecret installs a fresh unconfirmed secret. The WHERE guard
// on the conflict update keeps a confirmed secret from being silently replaced.
func (r *PostgresRepository) UpsertPendingTOTPSecret(ctx context.Context, s *domain.TOTPSecret) error {
	const q = `
		INSERT INTO totp_secrets (user_id, secret, confirmed, created_at)
		VALUES ($1, $2, false, $3)
		ON CONFLICT (user_id) DO UPDATE
			SET secret = EXCLUDED.secret, confirmed = false, created_at = EXCLUDED.created_at, confirmed_at = NULL
			WHERE totp_secrets.confirmed = false`
	_, err := r.pool.Exec(ctx, q, s.UserID, s.Secret, s.CreatedAt)
	return err
}

// ConfirmTOTPSecret marks the user's secret confirmed.
func (r *PostgresRepository) ConfirmTOTPSecret(ctx context.Context, userID string) error {
	const q = `UPDATE totp_secrets SET confirmed = true, confirmed_at = $2 WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, q, userID, time.Now().UTC())
	return err
}

// DeleteTOTPSecret removes the user's secret, confirmed or not.
func (r *PostgresRepository) DeleteTOTPSecret(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM totp_secrets WHERE user_id = $1`, userID)
	return err
}

// ReplaceBackupCodes deletes the user's existing set and installs codes in one
// transaction, so a reader never observes a mixed set.
func (r *PostgresRepository) ReplaceBackupCodes(ctx context.Context, userID string, codes []*domain.BackupCode) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	const q = `INSERT INTO backup_codes (id, user_id, code_hash, created_at) VALUES ($1, $2, $3, $4)`
	for _, c := range codes {
		if _, err := tx.Exec(ctx, q, c.ID, c.UserID, c.CodeHash, c.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ConsumeBackupCode marks the matching unconsumed code as used. Returns false
// when no usable code matched (unknown hash or already consumed).
func (r *PostgresRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	const q = `
		UPDATE backup_codes SET consumed_at = $3
		WHERE user_id = $1 AND code_hash = $2 AND consumed_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, userID, codeHash, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteBackupCodes removes the user's whole set.
func (r *PostgresRepository) DeleteBackupCodes(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID)
	return err
}
