package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/campus/internal/auth"
	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

// ---------------------------------------------------------------------------
// Context helpers: attach principal and request context for DoCtx
// ---------------------------------------------------------------------------

func principalCtx(p *domain.Principal) context.Context {
	return tenancy.WithPrincipal(context.Background(), p)
}

// scopedCtx mimics what Auth followed by ResolveTenant establish.
func scopedCtx(p *domain.Principal, tenantID uuid.UUID) context.Context {
	ctx := principalCtx(p)
	var out context.Context
	_ = tenancy.Run(ctx, tenancy.RequestContext{TenantID: tenantID, UserID: p.ID, Role: p.Role}, func(ctx context.Context) error {
		out = ctx
		return nil
	})
	return out
}

func ownerOf(tenantIDs ...uuid.UUID) *domain.Principal {
	return &domain.Principal{ID: uuid.New(), Role: domain.RoleOwner, Status: domain.AccountActive, OwnedTenantIDs: tenantIDs}
}

func teacherIn(tenantIDs ...uuid.UUID) *domain.Principal {
	return &domain.Principal{ID: uuid.New(), Role: domain.RoleTeacher, Status: domain.AccountActive, MembershipTenantIDs: tenantIDs}
}

func studentIn(tenantIDs ...uuid.UUID) *domain.Principal {
	return &domain.Principal{ID: uuid.New(), Role: domain.RoleStudent, Status: domain.AccountActive, MembershipTenantIDs: tenantIDs}
}

func superAdmin() *domain.Principal {
	return &domain.Principal{ID: uuid.New(), Role: domain.RoleSuperAdmin, Status: domain.AccountActive}
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	tenants        domain.TenantRepository
	users          domain.UserRepository
	students       domain.StudentRepository
	securityEvents domain.SecurityEventRepository
}

func (m *mockDataStore) Tenants() domain.TenantRepository               { return m.tenants }
func (m *mockDataStore) Users() domain.UserRepository                   { return m.users }
func (m *mockDataStore) Students() domain.StudentRepository             { return m.students }
func (m *mockDataStore) SecurityEvents() domain.SecurityEventRepository { return m.securityEvents }

// ---------------------------------------------------------------------------
// Mock TenantRepository
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	createFunc         func(ctx context.Context, t *domain.Tenant) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	getBySubdomainFunc func(ctx context.Context, subdomain string) (*domain.Tenant, error)
	listOwnedByFunc    func(ctx context.Context, ownerID uuid.UUID) ([]*domain.Tenant, error)
	listPaginatedFunc  func(ctx context.Context, limit, offset int) ([]*domain.Tenant, error)
}

func (m *mockTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	return m.createFunc(ctx, t)
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTenantRepo) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	return m.getBySubdomainFunc(ctx, subdomain)
}

func (m *mockTenantRepo) ListOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]*domain.Tenant, error) {
	return m.listOwnedByFunc(ctx, ownerID)
}

func (m *mockTenantRepo) ListPaginated(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	return m.listPaginatedFunc(ctx, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

func (m *mockUserRepo) Create(context.Context, *domain.User) error { panic("not used") }

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	panic("not used")
}

func (m *mockUserRepo) GetPrincipal(context.Context, uuid.UUID) (*domain.Principal, error) {
	panic("not used")
}

func (m *mockUserRepo) HasMembership(context.Context, uuid.UUID, uuid.UUID, domain.MembershipRole) (bool, error) {
	panic("not used")
}

func (m *mockUserRepo) AddMembership(context.Context, uuid.UUID, uuid.UUID, domain.MembershipRole) error {
	panic("not used")
}

// ---------------------------------------------------------------------------
// Mock StudentRepository
// ---------------------------------------------------------------------------

type mockStudentRepo struct {
	createFunc  func(ctx context.Context, s *domain.Student) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Student, error)
	listFunc    func(ctx context.Context, limit, offset int) ([]*domain.Student, error)
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockStudentRepo) Create(ctx context.Context, s *domain.Student) error {
	return m.createFunc(ctx, s)
}

func (m *mockStudentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockStudentRepo) List(ctx context.Context, limit, offset int) ([]*domain.Student, error) {
	return m.listFunc(ctx, limit, offset)
}

func (m *mockStudentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock SecurityEventRepository
// ---------------------------------------------------------------------------

type mockSecurityEventRepo struct {
	recordFunc     func(ctx context.Context, e *domain.SecurityEvent) error
	listRecentFunc func(ctx context.Context, limit, offset int) ([]*domain.SecurityEvent, error)
}

func (m *mockSecurityEventRepo) Record(ctx context.Context, e *domain.SecurityEvent) error {
	return m.recordFunc(ctx, e)
}

func (m *mockSecurityEventRepo) ListRecent(ctx context.Context, limit, offset int) ([]*domain.SecurityEvent, error) {
	return m.listRecentFunc(ctx, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	loginFunc          func(ctx context.Context, email, password string) (*auth.TokenPair, error)
	loginWithEmailFunc func(ctx context.Context, email string) (*auth.TokenPair, error)
	refreshFunc        func(ctx context.Context, refreshToken string) (string, time.Time, error)
	logoutFunc         func(ctx context.Context, tokens ...string) error
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) LoginWithEmail(ctx context.Context, email string) (*auth.TokenPair, error) {
	return m.loginWithEmailFunc(ctx, email)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	return m.refreshFunc(ctx, refreshToken)
}

func (m *mockAuthService) Logout(ctx context.Context, tokens ...string) error {
	return m.logoutFunc(ctx, tokens...)
}

// ---------------------------------------------------------------------------
// Mock OAuthProvider
// ---------------------------------------------------------------------------

type mockOAuthProvider struct {
	exchangeFunc func(ctx context.Context, code string) (*auth.UserInfo, error)
}

func (m *mockOAuthProvider) AuthorizationURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*auth.UserInfo, error) {
	return m.exchangeFunc(ctx, code)
}
