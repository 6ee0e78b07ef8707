package tenancy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/campus/internal/domain"
)

type contextKey int

const (
	requestContextKey contextKey = iota
	principalKey
)

// RequestContext is the ambient scope of one request. It is stored by value
// so nothing downstream can mutate it.
type RequestContext struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     domain.Role
}

// Scoped reports whether rc names a tenant.
func (rc RequestContext) Scoped() bool {
	return rc.TenantID != uuid.Nil
}

// Run makes rc the ambient request context for fn and everything fn calls
// with the derived ctx, including goroutines started with it. The parent
// ctx is untouched, so nothing leaks to sibling or later requests.
func Run(ctx context.Context, rc RequestContext, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, requestContextKey, rc))
}

// FromContext returns the ambient request context. The boolean is false
// outside any request (startup, background jobs); callers treat that as
// "no tenant scoping".
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(RequestContext)
	return rc, ok
}

// WithPrincipal attaches the authenticated actor. It is set before the
// tenant is resolved.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

// Scope is the decision a data access makes before touching the database.
type Scope struct {
	TenantID uuid.UUID // uuid.Nil means unscoped
}

func (s Scope) Unscoped() bool { return s.TenantID == uuid.Nil }

// RequireScope decides how a data access must be scoped:
//   - an established request context with a tenant scopes to that tenant;
//   - a super-admin runs unscoped;
//   - code outside any request (no principal, no context) runs unscoped;
//   - any other principal without a tenant is ErrMissingTenantContext.
func RequireScope(ctx context.Context) (Scope, error) {
	if rc, ok := FromContext(ctx); ok {
		if rc.Scoped() {
			return Scope{TenantID: rc.TenantID}, nil
		}
		if !rc.Role.TenantBound() {
			return Scope{}, nil
		}
		return Scope{}, fmt.Errorf("tenancy.RequireScope: role %q: %w", rc.Role, ErrMissingTenantContext)
	}

	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Scope{}, nil
	}
	if !p.Role.TenantBound() {
		return Scope{}, nil
	}
	return Scope{}, fmt.Errorf("tenancy.RequireScope: role %q: %w", p.Role, ErrMissingTenantContext)
}
