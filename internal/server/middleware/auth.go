package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/campus/internal/auth"
	"github.com/gosuda/campus/internal/domain"
	"github.com/gosuda/campus/internal/tenancy"
)

// TokenRevocations is the read side of the revocation list.
type TokenRevocations interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// PrincipalLoader loads the acting user with its institute ties.
type PrincipalLoader interface {
	GetPrincipal(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
}

// AuthConfig configures the authentication gate.
type AuthConfig struct {
	JWTSecret  string
	CookieName string // empty disables cookie credentials
}

// Auth verifies the caller's access token, refuses revoked tokens and
// non-active accounts, and attaches the principal to the request context.
// Tenant resolution runs after it; Auth itself never scopes a request.
func Auth(cfg AuthConfig, revocations TokenRevocations, principals PrincipalLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tok := extractToken(r, cfg.CookieName)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, CodeNoToken, "Authentication required")
				return
			}

			claims, err := auth.ValidateAccessToken(cfg.JWTSecret, tok)
			if errors.Is(err, auth.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, CodeTokenExpired, "Token expired")
				return
			}
			if err != nil {
				log.Debug().Err(err).Str("ip", ClientIP(r)).Msg("auth: rejected token")
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid token")
				return
			}

			revoked, err := revocations.IsRevoked(ctx, claims.ID)
			if err != nil {
				log.Error().Err(err).Msg("auth: revocation lookup failed")
				writeInternal(w)
				return
			}
			if revoked {
				writeError(w, http.StatusUnauthorized, CodeTokenRevoked, "Token revoked")
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid token")
				return
			}

			p, err := principals.GetPrincipal(ctx, userID)
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid token")
				return
			}
			if err != nil {
				log.Error().Err(err).Str("user_id", userID.String()).Msg("auth: load principal")
				writeInternal(w)
				return
			}

			switch err := p.Status.Err(); {
			case errors.Is(err, domain.ErrAccountSuspended):
				writeError(w, http.StatusForbidden, CodeAccountSuspended, "Account suspended")
				return
			case err != nil:
				writeError(w, http.StatusForbidden, CodeAccountInactive, "Account inactive")
				return
			}

			next.ServeHTTP(w, r.WithContext(tenancy.WithPrincipal(ctx, p)))
		})
	}
}

// extractToken prefers the Authorization header over the cookie.
func extractToken(r *http.Request, cookieName string) string {
	if tok := extractBearer(r); tok != "" {
		return tok
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
