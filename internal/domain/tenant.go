package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant is one customer institute. Subdomain is the DNS label the institute
// is served under and is unique across all tenants.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantRepository reads the tenant catalog. The catalog is global: it is
// not covered by row-level policies because tenant resolution needs it
// before any tenant is known.
type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	ListOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]*Tenant, error)
	ListPaginated(ctx context.Context, limit, offset int) ([]*Tenant, error)
}
