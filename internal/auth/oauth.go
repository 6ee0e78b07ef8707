package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// HTTPClient performs the user info request. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UserInfo is the identity an OAuth provider reports after a code exchange.
type UserInfo struct {
	ProviderID    string
	Email         string
	Name          string
	AvatarURL     string
	VerifiedEmail bool
}

// OAuthProvider holds the configuration for an OAuth2 identity provider.
type OAuthProvider struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	RedirectURL  string

	// HTTPClient, when set, fetches user info with the access token attached
	// by hand instead of through oauth2's transport.
	HTTPClient HTTPClient

	oauthConfig *oauth2.Config
}

// NewGoogleProvider returns an OAuth2 configuration for Google.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	p := &OAuthProvider{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      google.Endpoint.AuthURL,
		TokenURL:     google.Endpoint.TokenURL,
		UserInfoURL:  googleUserInfoURL,
		Scopes:       []string{"openid", "email", "profile"},
		RedirectURL:  redirectURL,
	}
	p.oauthConfig = p.buildConfig()
	return p
}

func (p *OAuthProvider) buildConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
		Scopes:      p.Scopes,
		RedirectURL: p.RedirectURL,
	}
}

// AuthorizationURL returns the OAuth2 authorization URL with the given state parameter.
func (p *OAuthProvider) AuthorizationURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for a token and fetches the
// user's identity with it.
func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) (*UserInfo, error) {
	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth.ExchangeCode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("auth.ExchangeCode: %w", err)
	}

	var resp *http.Response
	if p.HTTPClient != nil {
		token.SetAuthHeader(req)
		resp, err = p.HTTPClient.Do(req)
	} else {
		resp, err = p.oauthConfig.Client(ctx, token).Do(req)
	}
	if err != nil {
		return nil, fmt.Errorf("auth.ExchangeCode: fetching user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth.ExchangeCode: user info returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth.ExchangeCode: reading user info: %w", err)
	}

	return parseGoogleUserInfo(body)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func parseGoogleUserInfo(data []byte) (*UserInfo, error) {
	var info googleUserInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("auth.parseGoogleUserInfo: %w", err)
	}

	return &UserInfo{
		ProviderID:    info.ID,
		Email:         info.Email,
		Name:          info.Name,
		AvatarURL:     info.Picture,
		VerifiedEmail: info.VerifiedEmail,
	}, nil
}
