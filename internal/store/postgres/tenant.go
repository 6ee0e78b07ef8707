package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/campus/internal/domain"
)

// TenantRepo reads and writes the global tenant catalog. It goes to the pool
// directly because resolution must look tenants up before any scope exists.
type TenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

const tenantColumns = `id, name, subdomain, owner_id, created_at, updated_at`

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, subdomain, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.Subdomain, t.OwnerID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.Create: %w", mapErr(err))
	}

	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`,
		id,
	)
	t, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetByID: %w", mapErr(err))
	}

	return t, nil
}

// GetBySubdomain expects an already validated, lower-case label.
func (r *TenantRepo) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1`,
		subdomain,
	)
	t, err := scanTenant(row)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetBySubdomain: %w", mapErr(err))
	}

	return t, nil
}

func (r *TenantRepo) ListOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE owner_id = $1
		 ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListOwnedBy: %w", err)
	}
	defer rows.Close()

	return scanTenants(rows, "tenantRepo.ListOwnedBy")
}

func (r *TenantRepo) ListPaginated(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 ORDER BY created_at, id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListPaginated: %w", err)
	}
	defer rows.Close()

	return scanTenants(rows, "tenantRepo.ListPaginated")
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTenants(rows pgx.Rows, caller string) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tenants, nil
}
