package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-plane/internal/apikey/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an API key repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const apiKeyColumns = `id, tenant_id, user_id, name, prefix, secret_hash, scopes,
	expires_at, revoked_at, last_used_at, created_at`

func scanApiKey(row pgx.Row) (*domain.ApiKey, error) {
	var k domain.ApiKey
	err := row.Scan(&k.ID, &k.TenantID, &k.UserID, &k.Name, &k.Prefix, &k.SecretHash, &k.Scopes,
		&k.ExpiresAt, &k.RevokedAt, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &k, nil
}

// Create persists the key. The key must have ID and SecretHash set.
func (r *PostgresRepository) Create(ctx context.Context, k *domain.ApiKey) error {
	const q = `
		INSERT INTO api_keys (id, tenant_id, user_id, name, prefix, secret_hash, scopes,
			expires_at, revoked_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.pool.Exec(ctx, q,
		k.ID, k.TenantID, k.UserID, k.Name, k.Prefix, k.SecretHash, k.Scopes,
		k.ExpiresAt, k.RevokedAt, k.LastUsedAt, k.CreatedAt)
	return err
}

// GetByID returns the key for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.ApiKey, error) {
	return scanApiKey(r.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id))
}

// GetBySecretHash returns the key whose secret hashes to secretHash, or nil.
func (r *PostgresRepository) GetBySecretHash(ctx context.Context, secretHash string) (*domain.ApiKey, error) {
	return scanApiKey(r.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE secret_hash = $1`, secretHash))
}

// ListByTenant returns the tenant's keys, newest first, revoked included.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ApiKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ApiKey
	for rows.Next() {
		k, err := scanApiKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Revoke marks the key revoked. Revoking an already revoked key keeps the
// original timestamp, so the call is idempotent.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	const q = `UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id, time.Now().UTC())
	return err
}

// TouchLastUsed records that the key authenticated a request at the given time.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}
