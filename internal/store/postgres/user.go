package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/campus/internal/domain"
)

// UserRepo is the identity store. Users are global; their ties to institutes
// are either ownership (tenants.owner_id) or rows in memberships.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, password_hash, name, role, status, created_at, updated_at`

// --- Users ---

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, nilIfEmpty(u.PasswordHash),
		u.Name, u.Role, u.Status,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", mapErr(err))
	}

	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: %w", mapErr(err))
	}

	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", mapErr(err))
	}

	return u, nil
}

// GetPrincipal loads the user with every tenant it owns and every tenant it
// holds an active membership in, in one round trip.
func (r *UserRepo) GetPrincipal(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	var p domain.Principal

	err := r.pool.QueryRow(ctx,
		`SELECT u.id, u.role, u.status,
		        COALESCE((SELECT array_agg(t.id ORDER BY t.created_at, t.id)
		                  FROM tenants t WHERE t.owner_id = u.id), '{}'),
		        COALESCE((SELECT array_agg(DISTINCT m.tenant_id)
		                  FROM memberships m WHERE m.user_id = u.id AND m.active), '{}')
		 FROM users u WHERE u.id = $1`,
		id,
	).Scan(&p.ID, &p.Role, &p.Status, &p.OwnedTenantIDs, &p.MembershipTenantIDs)
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetPrincipal: %w", mapErr(err))
	}

	return &p, nil
}

// --- Memberships ---

func (r *UserRepo) HasMembership(ctx context.Context, userID, tenantID uuid.UUID, role domain.MembershipRole) (bool, error) {
	var ok bool

	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM memberships
		   WHERE user_id = $1 AND tenant_id = $2 AND role = $3 AND active
		 )`,
		userID, tenantID, role,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("userRepo.HasMembership: %w", err)
	}

	return ok, nil
}

func (r *UserRepo) AddMembership(ctx context.Context, userID, tenantID uuid.UUID, role domain.MembershipRole) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO memberships (user_id, tenant_id, role, active, created_at)
		 VALUES ($1, $2, $3, true, now())
		 ON CONFLICT (user_id, tenant_id, role) DO UPDATE SET active = true`,
		userID, tenantID, role,
	)
	if err != nil {
		return fmt.Errorf("userRepo.AddMembership: %w", mapErr(err))
	}

	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var passwordHash *string

	err := row.Scan(&u.ID, &u.Email, &passwordHash, &u.Name, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = derefStr(passwordHash)

	return &u, nil
}
