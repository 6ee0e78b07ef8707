package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/campus/internal/auth"
	"github.com/gosuda/campus/internal/config"
	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/server"
	"github.com/gosuda/campus/internal/tenancy"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

type memStore struct {
	mu         sync.Mutex
	tenants    []*domain.Tenant
	principals map[uuid.UUID]*domain.Principal
	students   []*domain.Student
	events     []*domain.SecurityEvent
	pingErr    error
}

func (m *memStore) Tenants() domain.TenantRepository               { return memTenants{m} }
func (m *memStore) Users() domain.UserRepository                   { return memUsers{m} }
func (m *memStore) Students() domain.StudentRepository             { return memStudents{m} }
func (m *memStore) SecurityEvents() domain.SecurityEventRepository { return memEvents{m} }
func (m *memStore) Ping(context.Context) error                     { return m.pingErr }

func (m *memStore) recorded() []*domain.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

type memTenants struct{ m *memStore }

func (r memTenants) Create(_ context.Context, t *domain.Tenant) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tenants = append(r.m.tenants, t)
	return nil
}

func (r memTenants) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	for _, t := range r.m.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memTenants) GetBySubdomain(_ context.Context, subdomain string) (*domain.Tenant, error) {
	for _, t := range r.m.tenants {
		if t.Subdomain == subdomain {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memTenants) ListOwnedBy(_ context.Context, ownerID uuid.UUID) ([]*domain.Tenant, error) {
	var out []*domain.Tenant
	for _, t := range r.m.tenants {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTenants) ListPaginated(context.Context, int, int) ([]*domain.Tenant, error) {
	return r.m.tenants, nil
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(context.Context, *domain.User) error { return errors.New("not supported") }

func (r memUsers) GetByID(context.Context, uuid.UUID) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (r memUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (r memUsers) GetPrincipal(_ context.Context, id uuid.UUID) (*domain.Principal, error) {
	p, ok := r.m.principals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (r memUsers) HasMembership(_ context.Context, userID, tenantID uuid.UUID, _ domain.MembershipRole) (bool, error) {
	p, ok := r.m.principals[userID]
	return ok && slices.Contains(p.MembershipTenantIDs, tenantID), nil
}

func (r memUsers) AddMembership(context.Context, uuid.UUID, uuid.UUID, domain.MembershipRole) error {
	return errors.New("not supported")
}

// memStudents applies the same scoping the row-level policy does.
type memStudents struct{ m *memStore }

func (r memStudents) visible(ctx context.Context) ([]*domain.Student, error) {
	scope, err := tenancy.RequireScope(ctx)
	if err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Student
	for _, s := range r.m.students {
		if scope.Unscoped() || s.TenantID == scope.TenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r memStudents) Create(ctx context.Context, s *domain.Student) error {
	scope, err := tenancy.RequireScope(ctx)
	if err != nil {
		return err
	}
	s.TenantID = scope.TenantID
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.students = append(r.m.students, s)
	return nil
}

func (r memStudents) GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error) {
	rows, err := r.visible(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range rows {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memStudents) List(ctx context.Context, _, _ int) ([]*domain.Student, error) {
	return r.visible(ctx)
}

func (r memStudents) Delete(context.Context, uuid.UUID) error { return errors.New("not supported") }

type memEvents struct{ m *memStore }

func (r memEvents) Record(_ context.Context, e *domain.SecurityEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.events = append(r.m.events, e)
	return nil
}

func (r memEvents) ListRecent(context.Context, int, int) ([]*domain.SecurityEvent, error) {
	return r.m.recorded(), nil
}

type memRevocations struct{ pingErr error }

func (memRevocations) IsRevoked(context.Context, string) (bool, error) { return false, nil }
func (r memRevocations) Ping(context.Context) error                    { return r.pingErr }

type stubAuth struct{}

func (stubAuth) Login(context.Context, string, string) (*auth.TokenPair, error) {
	return nil, auth.ErrInvalidCredentials
}

func (stubAuth) LoginWithEmail(context.Context, string) (*auth.TokenPair, error) {
	return nil, auth.ErrInvalidCredentials
}

func (stubAuth) Refresh(context.Context, string) (string, time.Time, error) {
	return "", time.Time{}, auth.ErrInvalidToken
}

func (stubAuth) Logout(context.Context, ...string) error { return nil }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	handler http.Handler
	store   *memStore
	alpha   *domain.Tenant
	beta    *domain.Tenant
	teacher *domain.Principal
	admin   *domain.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ownerID := uuid.New()
	alpha := &domain.Tenant{ID: uuid.New(), Name: "Alpha", Subdomain: "alpha", OwnerID: ownerID}
	beta := &domain.Tenant{ID: uuid.New(), Name: "Beta", Subdomain: "beta", OwnerID: uuid.New()}
	teacher := &domain.Principal{ID: uuid.New(), Role: domain.RoleTeacher, Status: domain.AccountActive, MembershipTenantIDs: []uuid.UUID{alpha.ID}}
	admin := &domain.Principal{ID: uuid.New(), Role: domain.RoleSuperAdmin, Status: domain.AccountActive}

	store := &memStore{
		tenants: []*domain.Tenant{alpha, beta},
		principals: map[uuid.UUID]*domain.Principal{
			teacher.ID: teacher,
			admin.ID:   admin,
		},
		students: []*domain.Student{
			{ID: uuid.New(), TenantID: alpha.ID, FullName: "Ann Alpha"},
			{ID: uuid.New(), TenantID: beta.ID, FullName: "Ben Beta"},
		},
	}

	cfg := &config.Config{
		Env:       config.EnvDevelopment,
		JWT:       config.JWTConfig{Secret: testSecret, AccessTTL: time.Minute, RefreshTTL: time.Hour},
		Session:   config.SessionConfig{CookieName: "campus_session"},
		Tenancy:   config.TenancyConfig{BaseDomain: "campus.test"},
		RateLimit: config.RateLimitConfig{AuthRPS: 0.001, AuthBurst: 2, TenantRPS: 1000, TenantBurst: 1000},
		Server:    config.ServerConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := server.New(ctx, cfg, server.Deps{
		Store:       store,
		Revocations: memRevocations{},
		Auth:        stubAuth{},
	})

	return &fixture{handler: srv.Handler(), store: store, alpha: alpha, beta: beta, teacher: teacher, admin: admin}
}

func (f *fixture) token(t *testing.T, p *domain.Principal) string {
	t.Helper()
	tok, err := auth.IssueAccessToken(testSecret, p.ID, p.Role, time.Minute)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func get(host, path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "http://"+host+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func studentNames(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var body []domain.Student
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	names := make([]string, 0, len(body))
	for _, s := range body {
		names = append(names, s.FullName)
	}
	return names
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Code
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(get("campus.test", "/healthz", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(get("campus.test", "/readyz", ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	f.store.pingErr = errors.New("db down")
	rec = f.do(get("campus.test", "/readyz", ""))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestScopedRoutesRequireAuthentication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(get("alpha.campus.test", "/api/v1/students", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "NO_TOKEN", errorCode(t, rec))
}

func TestSubdomainScopesStudents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(get("alpha.campus.test", "/api/v1/students", f.token(t, f.teacher)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Ann Alpha"}, studentNames(t, rec))
}

func TestHomeInstituteFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(get("campus.test", "/api/v1/students", f.token(t, f.teacher)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Ann Alpha"}, studentNames(t, rec))
}

func TestCookieAuthentication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := get("alpha.campus.test", "/api/v1/students", "")
	req.AddCookie(&http.Cookie{Name: "campus_session", Value: f.token(t, f.teacher)})

	rec := f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestForeignInstituteIsRejected(t *testing.T) {
	t.Parallel()

	t.Run("subdomain", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(get("beta.campus.test", "/api/v1/students", f.token(t, f.teacher)))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Ben Beta")

		assert.Eventually(t, func() bool {
			return len(f.store.recorded()) == 1
		}, time.Second, 5*time.Millisecond)
		e := f.store.recorded()[0]
		assert.Equal(t, tenancy.ReasonNotAuthorized, e.Kind)
		assert.Equal(t, f.teacher.ID, e.UserID)
	})

	t.Run("header", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req := get("campus.test", "/api/v1/students", f.token(t, f.teacher))
		req.Header.Set("X-Institute-ID", f.beta.ID.String())

		rec := f.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("json_body", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		body := `{"institute_id":"` + f.beta.ID.String() + `","full_name":"Mallory"}`
		req := httptest.NewRequest(http.MethodPost, "http://campus.test/api/v1/students", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+f.token(t, f.teacher))
		req.Header.Set("Content-Type", "application/json")

		rec := f.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		assert.Len(t, f.store.students, 2, "nothing may be written")
	})
}

func TestInvalidSubdomainRejectedBeforeLookup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(get("bad-label.campus.test", "/api/v1/students", f.token(t, f.teacher)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "bad-label")
}

func TestCreateStudentLandsInResolvedInstitute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body := `{"institute_id":"` + f.alpha.ID.String() + `","full_name":"Carl"}`
	req := httptest.NewRequest(http.MethodPost, "http://campus.test/api/v1/students", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.teacher))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Student
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, f.alpha.ID, created.TenantID)
}

func TestSuperAdmin(t *testing.T) {
	t.Parallel()

	t.Run("unscoped_session", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(get("campus.test", "/api/v1/session", f.token(t, f.admin)))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, false, body["scoped"])
	})

	t.Run("tenant_data_requires_institute", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(get("campus.test", "/api/v1/students", f.token(t, f.admin)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "TENANT_REQUIRED", errorCode(t, rec))
	})

	t.Run("any_institute_by_header", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req := get("campus.test", "/api/v1/students", f.token(t, f.admin))
		req.Header.Set("X-Institute-ID", f.beta.ID.String())

		rec := f.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"Ben Beta"}, studentNames(t, rec))
	})

	t.Run("catalog_is_not_tenant_scoped", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(get("campus.test", "/api/v1/institutes", f.token(t, f.admin)))
		require.Equal(t, http.StatusOK, rec.Code)

		var body []domain.Tenant
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Len(t, body, 2)
	})
}

func TestLoginRateLimitedPerIP(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "http://campus.test/api/v1/auth/login",
			strings.NewReader(`{"email":"x@campus.test","password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.7:4242"
		return f.do(req).Code
	}

	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}

func TestGoogleSignInOffWithoutProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(get("campus.test", "/api/v1/auth/oauth/google", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConcurrentRequestsStayIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	adminTok := f.token(t, f.admin)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			want, tenant := "Ann Alpha", f.alpha
			if i%2 == 1 {
				want, tenant = "Ben Beta", f.beta
			}
			req := get("campus.test", "/api/v1/students", adminTok)
			req.Header.Set("X-Institute-ID", tenant.ID.String())

			rec := f.do(req)
			var body []domain.Student
			if assert.Equal(t, http.StatusOK, rec.Code) && assert.NoError(t, json.NewDecoder(rec.Body).Decode(&body)) {
				if assert.Len(t, body, 1) {
					assert.Equal(t, want, body[0].FullName)
				}
			}
		}()
	}
	wg.Wait()
}

func TestAuditRoutesRequireSuperAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(get("campus.test", "/api/v1/security-events", f.token(t, f.teacher)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = f.do(get("campus.test", "/api/v1/security-events", f.token(t, f.admin)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
