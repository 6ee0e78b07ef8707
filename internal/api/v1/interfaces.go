package v1

import (
	"context"
	"time"

	"github.com/gosuda/campus/internal/auth"
	"github.com/gosuda/campus/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Tenants() domain.TenantRepository
	Users() domain.UserRepository
	Students() domain.StudentRepository
	SecurityEvents() domain.SecurityEventRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	LoginWithEmail(ctx context.Context, email string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, time.Time, error)
	Logout(ctx context.Context, tokens ...string) error
}

// SessionCookie describes the cookie that carries the access token for
// browser clients.
type SessionCookie struct {
	Name   string
	Domain string
	Secure bool
}
