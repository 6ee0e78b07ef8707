package domain

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role is the acting role of a user.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTeacher    Role = "teacher"
	RoleOwner      Role = "institute-owner"
	RoleSuperAdmin Role = "super-admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleOwner, RoleSuperAdmin:
		return true
	}
	return false
}

// TenantBound reports whether every data access by this role must be
// scoped to a tenant. Only the super-admin may act across tenants.
func (r Role) TenantBound() bool {
	return r != RoleSuperAdmin
}

// MembershipRole is the role a user holds inside one institute.
type MembershipRole string

const (
	MembershipStudent MembershipRole = "student"
	MembershipTeacher MembershipRole = "teacher"
)

// AccountStatus is the business status of an account. A cryptographically
// valid credential is still refused unless the status is active.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountInactive  AccountStatus = "inactive"
)

type User struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"` // argon2id
	Name         string        `json:"name"`
	Role         Role          `json:"role"`
	Status       AccountStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Principal is the authenticated actor of one request. It is read-only for
// the lifetime of the request.
type Principal struct {
	ID                  uuid.UUID
	Role                Role
	Status              AccountStatus
	OwnedTenantIDs      []uuid.UUID
	MembershipTenantIDs []uuid.UUID
}

// Owns reports whether the principal owns the given tenant.
func (p *Principal) Owns(tenantID uuid.UUID) bool {
	return slices.Contains(p.OwnedTenantIDs, tenantID)
}

// HomeTenants returns the tenants the principal may fall back to when the
// request names none: owned institutes for owners, memberships otherwise.
func (p *Principal) HomeTenants() []uuid.UUID {
	switch p.Role {
	case RoleOwner:
		return p.OwnedTenantIDs
	case RoleStudent, RoleTeacher:
		return p.MembershipTenantIDs
	}
	return nil
}

// UserRepository is the identity store. Like the tenant catalog it is read
// before tenant resolution and therefore is not tenant scoped.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetPrincipal loads the user together with owned and member tenants.
	GetPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)
	// HasMembership reports whether an active membership of the given role
	// exists for userID in tenantID.
	HasMembership(ctx context.Context, userID, tenantID uuid.UUID, role MembershipRole) (bool, error)
	AddMembership(ctx context.Context, userID, tenantID uuid.UUID, role MembershipRole) error
}
