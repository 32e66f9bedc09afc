package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"identity-plane/internal/audit/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an audit event repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the event. The database assigns ID and, when zero, CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	const q = `
		INSERT INTO audit_events (tenant_id, actor_id, action, resource, result, ip_address, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var meta any
	if len(e.Metadata) > 0 {
		meta = e.Metadata
	}
	_, err := r.pool.Exec(ctx, q,
		e.TenantID, e.ActorID, e.Action, e.Resource, e.Result, e.IP, meta, e.CreatedAt)
	return err
}

// ListByTenant returns the tenant's events, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.Event, error) {
	const q = `
		SELECT id, tenant_id, actor_id, action, resource, result, ip_address, metadata, created_at
		FROM audit_events WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.Action, &e.Resource, &e.Result,
			&e.IP, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
