package tenancy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/campus/internal/domain"
)

// Machine-readable codes returned to clients on resolution failures.
const (
	CodeInvalidTenant   = "INVALID_TENANT"
	CodeForbidden       = "FORBIDDEN"
	CodeTenantRequired  = "TENANT_REQUIRED"
	CodeTenantAmbiguous = "TENANT_AMBIGUOUS"
	CodeNoToken         = "NO_TOKEN"
)

// Reasons are logged and stored as security events; they never reach clients.
const (
	ReasonInvalidSubdomain = "invalid_subdomain"
	ReasonUnknownSubdomain = "unknown_subdomain"
	ReasonInvalidExplicit  = "invalid_tenant_param"
	ReasonUnknownExplicit  = "unknown_tenant_param"
	ReasonNotAuthorized    = "forbidden_tenant"
	ReasonNoTenant         = "no_tenant"
	ReasonAmbiguous        = "ambiguous_tenant"
	ReasonNoPrincipal      = "no_principal"
)

// ResolveError is a definitive rejection. Message and Code are safe to send
// to the client; Raw holds the offending input for server-side logs only.
type ResolveError struct {
	Status  int
	Code    string
	Message string
	Reason  string
	Raw     string
	Err     error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return "tenancy: " + e.Reason + ": " + e.Err.Error()
	}
	return "tenancy: " + e.Reason
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Source tells which signal selected the tenant.
type Source string

const (
	SourceSubdomain Source = "subdomain"
	SourceExplicit  Source = "explicit"
	SourceHome      Source = "home"
	SourceNone      Source = "none" // super-admin without any signal
)

// Resolution is the outcome of a successful Resolve. Tenant is nil only for
// SourceNone.
type Resolution struct {
	Tenant *domain.Tenant
	Source Source
}

// TenantID returns the resolved tenant id, or uuid.Nil when unscoped.
func (r *Resolution) TenantID() uuid.UUID {
	if r.Tenant == nil {
		return uuid.Nil
	}
	return r.Tenant.ID
}

type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
}

type MembershipLookup interface {
	HasMembership(ctx context.Context, userID, tenantID uuid.UUID, role domain.MembershipRole) (bool, error)
}

// ResolveRequest carries the inputs of one resolution. Explicit is the raw
// tenant parameter from header, query or body, empty when absent.
type ResolveRequest struct {
	Host      string
	Explicit  string
	Principal *domain.Principal
}

// Resolver turns a request into exactly one tenant or fails closed. It keeps
// no per-request state: the same inputs always give the same answer.
type Resolver struct {
	tenants    TenantLookup
	members    MembershipLookup
	baseDomain string
}

// NewResolver creates a Resolver. baseDomain is the domain institutes are
// served under ("campus.example.com"); an empty baseDomain treats the
// leftmost label of any host with at least three labels as the subdomain.
func NewResolver(tenants TenantLookup, members MembershipLookup, baseDomain string) *Resolver {
	return &Resolver{
		tenants:    tenants,
		members:    members,
		baseDomain: strings.ToLower(strings.Trim(baseDomain, ".")),
	}
}

// Resolve applies, in order: subdomain, explicit parameter, home tenant.
// The authorization check runs for every candidate unless the principal is a
// super-admin.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	p := req.Principal
	if p == nil {
		return nil, &ResolveError{
			Status: http.StatusUnauthorized, Code: CodeNoToken,
			Message: "authentication required", Reason: ReasonNoPrincipal,
		}
	}

	if label, ok := r.subdomain(req.Host); ok {
		ident, err := ValidateSubdomain(label)
		if err != nil {
			return nil, invalidTenant(ReasonInvalidSubdomain, label, err)
		}

		t, err := r.tenants.GetBySubdomain(ctx, ident.String())
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &ResolveError{
				Status: http.StatusNotFound, Code: CodeInvalidTenant,
				Message: "Unknown tenant", Reason: ReasonUnknownSubdomain, Raw: label,
			}
		}
		if err != nil {
			return nil, fmt.Errorf("tenancy.Resolve: subdomain lookup: %w", err)
		}

		return r.authorize(ctx, p, t, SourceSubdomain)
	}

	if req.Explicit != "" {
		key, err := ValidateTenantKey(req.Explicit)
		if err != nil {
			return nil, invalidTenant(ReasonInvalidExplicit, req.Explicit, err)
		}
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, invalidTenant(ReasonInvalidExplicit, req.Explicit, ErrInvalidTenantKey)
		}

		t, err := r.tenants.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			if !p.Role.TenantBound() {
				return nil, &ResolveError{
					Status: http.StatusNotFound, Code: CodeInvalidTenant,
					Message: "Unknown tenant", Reason: ReasonUnknownExplicit, Raw: req.Explicit,
				}
			}
			// Same answer as an unauthorized caller gets for an existing
			// tenant, so the parameter cannot be used to discover tenants.
			return nil, forbidden(ReasonUnknownExplicit, req.Explicit)
		}
		if err != nil {
			return nil, fmt.Errorf("tenancy.Resolve: tenant lookup: %w", err)
		}

		return r.authorize(ctx, p, t, SourceExplicit)
	}

	if !p.Role.TenantBound() {
		return &Resolution{Source: SourceNone}, nil
	}

	home := p.HomeTenants()
	switch len(home) {
	case 0:
		return nil, &ResolveError{
			Status: http.StatusBadRequest, Code: CodeTenantRequired,
			Message: "Tenant selection required", Reason: ReasonNoTenant,
		}
	case 1:
	default:
		return nil, &ResolveError{
			Status: http.StatusBadRequest, Code: CodeTenantAmbiguous,
			Message: "Tenant selection required", Reason: ReasonAmbiguous,
		}
	}

	t, err := r.tenants.GetByID(ctx, home[0])
	if errors.Is(err, domain.ErrNotFound) {
		return nil, forbidden(ReasonUnknownExplicit, home[0].String())
	}
	if err != nil {
		return nil, fmt.Errorf("tenancy.Resolve: home lookup: %w", err)
	}

	return r.authorize(ctx, p, t, SourceHome)
}

func (r *Resolver) authorize(ctx context.Context, p *domain.Principal, t *domain.Tenant, src Source) (*Resolution, error) {
	res := &Resolution{Tenant: t, Source: src}

	if !p.Role.TenantBound() {
		return res, nil
	}
	if t.OwnerID == p.ID || p.Owns(t.ID) {
		return res, nil
	}

	member, err := r.isMember(ctx, p.ID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("tenancy.authorize: %w", err)
	}
	if !member {
		return nil, forbidden(ReasonNotAuthorized, t.ID.String())
	}

	return res, nil
}

// isMember runs the student and teacher membership checks concurrently.
func (r *Resolver) isMember(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	var student, teacher bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := r.members.HasMembership(gctx, userID, tenantID, domain.MembershipStudent)
		if err != nil {
			return fmt.Errorf("student membership: %w", err)
		}
		student = ok
		return nil
	})
	g.Go(func() error {
		ok, err := r.members.HasMembership(gctx, userID, tenantID, domain.MembershipTeacher)
		if err != nil {
			return fmt.Errorf("teacher membership: %w", err)
		}
		teacher = ok
		return nil
	})

	if err := g.Wait(); err != nil {
		return false, err
	}
	return student || teacher, nil
}

// subdomain extracts the leftmost label of host when host is below the base
// domain. IP literals, "www" and "localhost" carry no tenant signal.
func (r *Resolver) subdomain(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return "", false
	}

	var rest string
	if r.baseDomain != "" {
		var ok bool
		rest, ok = strings.CutSuffix(host, "."+r.baseDomain)
		if !ok {
			return "", false
		}
	} else {
		if strings.Count(host, ".") < 2 {
			return "", false
		}
		rest = host
	}

	label, _, _ := strings.Cut(rest, ".")
	switch label {
	case "", "www", "localhost":
		return "", false
	}
	return label, true
}

func invalidTenant(reason, raw string, err error) *ResolveError {
	return &ResolveError{
		Status: http.StatusBadRequest, Code: CodeInvalidTenant,
		Message: "Invalid tenant identifier", Reason: reason, Raw: raw, Err: err,
	}
}

func forbidden(reason, raw string) *ResolveError {
	return &ResolveError{
		Status: http.StatusForbidden, Code: CodeForbidden,
		Message: "Forbidden", Reason: reason, Raw: raw, Err: domain.ErrForbidden,
	}
}
