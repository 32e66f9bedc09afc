package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-plane/internal/security"
	"identity-plane/internal/session/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a session repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, user_id, tenant_id, refresh_salt, refresh_hash, refresh_expires_at,
	ip_address, user_agent, last_seen_at, revoked_at, created_at`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.TenantID, &s.RefreshSalt, &s.RefreshHash, &s.RefreshExpiresAt,
		&s.IPAddress, &s.UserAgent, &s.LastSeenAt, &s.RevokedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// ListByUser returns the user's non-revoked sessions, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND revoked_at IS NULL ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	const q = `
		INSERT INTO sessions (id, user_id, tenant_id, refresh_salt, refresh_hash, refresh_expires_at,
			ip_address, user_agent, last_seen_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.pool.Exec(ctx, q,
		s.ID, s.UserID, s.TenantID, s.RefreshSalt, s.RefreshHash, s.RefreshExpiresAt,
		s.IPAddress, s.UserAgent, s.LastSeenAt, s.RevokedAt, s.CreatedAt)
	return err
}

// Revoke marks the session with the given id as revoked. Revoking an already
// revoked session keeps the original timestamp, so the call is idempotent.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	const q = `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id, time.Now().UTC())
	return err
}

// RevokeAllByUser revokes all of the user's sessions. Returns an error if the update fails.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	const q = `UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, q, userID, time.Now().UTC())
	return err
}

// RevokeAllByUserExcept revokes all of the user's sessions except keepID.
// Used on password change so the session that changed the password survives.
func (r *PostgresRepository) RevokeAllByUserExcept(ctx context.Context, userID, keepID string) error {
	const q = `UPDATE sessions SET revoked_at = $3 WHERE user_id = $1 AND id <> $2 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, q, userID, keepID, time.Now().UTC())
	return err
}

// UpdateLastSeen sets the session's last-seen timestamp for the given id. Returns an error if the update fails.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// Rotate replaces the refresh credential in one transaction. The SELECT takes
// a row lock, so a concurrent rotation of the same session waits here and then
// fails the hash comparison against the winner's new value.
func (r *PostgresRepository) Rotate(ctx context.Context, id, presentedSecret, newSalt, newHash string, newExpiresAt time.Time) (*domain.Session, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s, err := scanSession(tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if s == nil || !s.Usable(now) {
		return nil, ErrNotFound
	}
	if !security.RefreshHashEqual(s.RefreshSalt, presentedSecret, s.RefreshHash) {
		return nil, ErrSecretMismatch
	}

	const q = `
		UPDATE sessions SET refresh_salt = $2, refresh_hash = $3, refresh_expires_at = $4, last_seen_at = $5
		WHERE id = $1`
	if _, err := tx.Exec(ctx, q, id, newSalt, newHash, newExpiresAt, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.RefreshSalt, s.RefreshHash, s.RefreshExpiresAt = newSalt, newHash, newExpiresAt
	s.LastSeenAt = &now
	return s, nil
}
