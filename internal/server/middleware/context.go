package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

// TenantIDFromContext returns the institute the request is scoped to. It is
// false for unauthenticated requests and for unscoped super-admin requests.
func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	rc, ok := tenancy.FromContext(ctx)
	if !ok || !rc.Scoped() {
		return uuid.Nil, false
	}
	return rc.TenantID, true
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := tenancy.PrincipalFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.ID, true
}

func RoleFromContext(ctx context.Context) (domain.Role, bool) {
	p, ok := tenancy.PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return p.Role, true
}

type contextKey int

const clientIPKey contextKey = iota

// WithClientIP records the caller address for code that only sees a context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the address stored by RememberClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// RememberClientIP stores ClientIP in the request context. Mount it after
// chi's RealIP.
func RememberClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ClientIP(r))))
	})
}

// ClientIP returns the caller address without port. chi's RealIP, mounted
// first, has already replaced RemoteAddr with the forwarded address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
