package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/campus/internal/auth"
	"github.com/gosuda/campus/internal/domain"
)

type LoginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type LoginOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		AccessToken      string    `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken     string    `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
		AccessExpiresAt  time.Time `json:"access_expires_at"`
		RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type RefreshOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		AccessToken     string    `json:"access_token"` //nolint:gosec // G117: auth response DTO
		AccessExpiresAt time.Time `json:"access_expires_at"`
	}
}

type LogoutInput struct {
	Authorization string `header:"Authorization" doc:"Bearer access token to revoke"`
	Cookie        string `header:"Cookie"`
	Body          struct {
		RefreshToken string `json:"refresh_token,omitempty" doc:"Refresh token to revoke"` //nolint:gosec // G117: token revoke DTO
	} `required:"false"`
}

type LogoutOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
}

func RegisterAuthRoutes(api huma.API, authSvc AuthService, cookie SessionCookie) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		pair, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, authError("login failed", err)
		}

		out := &LoginOutput{SetCookie: cookie.issue(pair.AccessToken, pair.AccessExpiresAt)}
		out.Body.AccessToken = pair.AccessToken
		out.Body.RefreshToken = pair.RefreshToken
		out.Body.AccessExpiresAt = pair.AccessExpiresAt
		out.Body.RefreshExpiresAt = pair.RefreshExpiresAt
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh access token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		access, expires, err := authSvc.Refresh(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, authError("refresh failed", err)
		}

		out := &RefreshOutput{SetCookie: cookie.issue(access, expires)}
		out.Body.AccessToken = access
		out.Body.AccessExpiresAt = expires
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/auth/logout",
		Summary:       "Revoke the presented tokens and clear the session cookie",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *LogoutInput) (*LogoutOutput, error) {
		access := bearer(input.Authorization)
		if access == "" {
			access = cookieValue(input.Cookie, cookie.Name)
		}

		if err := authSvc.Logout(ctx, access, input.Body.RefreshToken); err != nil {
			log.Error().Err(err).Msg("api: logout")
			return nil, huma.Error500InternalServerError("logout failed")
		}

		return &LogoutOutput{SetCookie: cookie.clear()}, nil
	})
}

func authError(msg string, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return huma.Error401Unauthorized("invalid email or password")
	case errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenRevoked):
		return huma.Error401Unauthorized("invalid or expired refresh token")
	case errors.Is(err, domain.ErrAccountSuspended):
		return huma.Error403Forbidden("account suspended")
	case errors.Is(err, domain.ErrAccountInactive):
		return huma.Error403Forbidden("account inactive")
	}
	log.Error().Err(err).Msg("api: " + msg)
	return huma.Error500InternalServerError(msg)
}

func (c SessionCookie) issue(token string, expires time.Time) http.Cookie {
	return http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c SessionCookie) clear() http.Cookie {
	return http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func bearer(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func cookieValue(header, name string) string {
	if header == "" || name == "" {
		return ""
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
