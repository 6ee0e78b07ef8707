package v1

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/campus/internal/auth"
)

const (
	oauthStateCookie = "campus_oauth_state"
	oauthCookiePath  = "/api/v1/auth/oauth"
	oauthStateTTL    = 10 * time.Minute
)

// OAuthProvider abstracts the identity provider for handler testing.
// *auth.OAuthProvider satisfies this interface.
type OAuthProvider interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*auth.UserInfo, error)
}

type OAuthStartOutput struct {
	Location  string      `header:"Location"`
	SetCookie http.Cookie `header:"Set-Cookie"`
}

type OAuthCallbackInput struct {
	Code  string `query:"code" maxLength:"2048" doc:"Authorization code from the provider"`
	State string `query:"state" maxLength:"128" doc:"State echoed back by the provider"`
	Saved string `cookie:"campus_oauth_state" doc:"State issued when the flow started"`
}

type OAuthCallbackOutput struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      struct {
		AccessToken      string    `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken     string    `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
		AccessExpiresAt  time.Time `json:"access_expires_at"`
		RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	}
}

// RegisterOAuthRoutes mounts Google sign-in. A verified provider email is
// matched to an existing campus user, who then gets the same token pair and
// session cookie as a password login.
func RegisterOAuthRoutes(api huma.API, provider OAuthProvider, authSvc AuthService, cookie SessionCookie) {
	huma.Register(api, huma.Operation{
		OperationID:   "oauth-google-start",
		Method:        http.MethodGet,
		Path:          "/auth/oauth/google",
		Summary:       "Redirect to Google sign-in",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusFound,
	}, func(_ context.Context, _ *struct{}) (*OAuthStartOutput, error) {
		state, err := newOAuthState()
		if err != nil {
			log.Error().Err(err).Msg("api: oauth state")
			return nil, huma.Error500InternalServerError("oauth unavailable")
		}

		return &OAuthStartOutput{
			Location:  provider.AuthorizationURL(state),
			SetCookie: cookie.oauthState(state, int(oauthStateTTL.Seconds())),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "oauth-google-callback",
		Method:      http.MethodGet,
		Path:        "/auth/oauth/google/callback",
		Summary:     "Complete Google sign-in",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *OAuthCallbackInput) (*OAuthCallbackOutput, error) {
		if input.State == "" || input.Saved == "" ||
			subtle.ConstantTimeCompare([]byte(input.State), []byte(input.Saved)) != 1 {
			return nil, huma.Error400BadRequest("oauth state mismatch")
		}
		if input.Code == "" {
			return nil, huma.Error400BadRequest("missing authorization code")
		}

		info, err := provider.ExchangeCode(ctx, input.Code)
		if err != nil {
			log.Warn().Err(err).Msg("api: oauth code exchange")
			return nil, huma.Error401Unauthorized("sign-in failed")
		}
		if !info.VerifiedEmail || info.Email == "" {
			log.Warn().Str("provider_id", info.ProviderID).Msg("api: oauth email not verified")
			return nil, huma.Error401Unauthorized("email not verified")
		}

		pair, err := authSvc.LoginWithEmail(ctx, info.Email)
		if err != nil {
			return nil, authError("oauth login failed", err)
		}

		out := &OAuthCallbackOutput{SetCookie: []http.Cookie{
			cookie.oauthState("", -1),
			cookie.issue(pair.AccessToken, pair.AccessExpiresAt),
		}}
		out.Body.AccessToken = pair.AccessToken
		out.Body.RefreshToken = pair.RefreshToken
		out.Body.AccessExpiresAt = pair.AccessExpiresAt
		out.Body.RefreshExpiresAt = pair.RefreshExpiresAt
		return out, nil
	})
}

func (c SessionCookie) oauthState(state string, maxAge int) http.Cookie {
	return http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     oauthCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func newOAuthState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
