package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-plane/internal/tenant/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a tenant repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetTenantByID returns the tenant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetTenantByID(ctx context.Context, id string) (*domain.Tenant, error) {
	const q = `SELECT id, name, status, created_at FROM tenants WHERE id = $1`
	var t domain.Tenant
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// CreateTenant persists the tenant to the database. The tenant must have ID set.
func (r *PostgresRepository) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	const q = `INSERT INTO tenants (id, name, status, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, q, t.ID, t.Name, t.Status, t.CreatedAt)
	return err
}

// UpdateTenant updates the existing tenant record in the database. Returns an error if the update fails.
func (r *PostgresRepository) UpdateTenant(ctx context.Context, t *domain.Tenant) error {
	const q = `UPDATE tenants SET name = $2, status = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, t.ID, t.Name, t.Status)
	return err
}
