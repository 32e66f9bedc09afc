package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-plane/internal/user/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a user repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, tenant_id, email, name, roles, status, mfa_state, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Roles, &u.Status, &u.MfaState, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns the user with the given email, or nil if not found.
// Lookup is case-insensitive; email is unique across tenants.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
		INSERT INTO users (id, tenant_id, email, name, roles, status, mfa_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, q,
		u.ID, u.TenantID, u.Email, u.Name, u.Roles, u.Status, u.MfaState, u.CreatedAt, u.UpdatedAt)
	return err
}

// Update updates the existing user record in the database. Tenant and email are immutable.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	const q = `
		UPDATE users SET name = $2, roles = $3, status = $4, mfa_state = $5, updated_at = $6
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, u.ID, u.Name, u.Roles, u.Status, u.MfaState, time.Now().UTC())
	return err
}

// SetMfaState moves the user's TOTP lifecycle state.
func (r *PostgresRepository) SetMfaState(ctx context.Context, userID string, state domain.MfaState) error {
	const q = `UPDATE users SET mfa_state = $2, updated_at = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, userID, state, time.Now().UTC())
	return err
}
