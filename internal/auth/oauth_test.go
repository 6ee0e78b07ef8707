package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/gosuda/campus/internal/auth"
)

// --- Auth URL tests ---

func TestNewGoogleProvider_AuthURL(t *testing.T) {
	t.Parallel()

	p := auth.NewGoogleProvider("google-client-id", "google-secret", "https://campus.example/api/v1/auth/oauth/google/callback")
	authURL := p.AuthorizationURL("test-state")

	require.NotEmpty(t, authURL)
	assert.Contains(t, authURL, "accounts.google.com")
	assert.Contains(t, authURL, "client_id=google-client-id")
	assert.Contains(t, authURL, "state=test-state")
	assert.Contains(t, authURL, "redirect_uri="+url.QueryEscape("https://campus.example/api/v1/auth/oauth/google/callback"))
	assert.Contains(t, authURL, "response_type=code")
}

func TestGoogleProvider_AuthURL_ContainsScopes(t *testing.T) {
	t.Parallel()

	p := auth.NewGoogleProvider("cid", "csec", "https://campus.example/cb")
	authURL := p.AuthorizationURL("s")

	assert.Contains(t, authURL, "scope=")
	assert.Contains(t, authURL, "openid")
	assert.Contains(t, authURL, "email")
	assert.Contains(t, authURL, "profile")
}

func TestGoogleProvider_NameIsGoogle(t *testing.T) {
	t.Parallel()

	p := auth.NewGoogleProvider("id", "sec", "https://campus.example/cb")
	assert.Equal(t, "google", p.Name)
}

// --- ExchangeCode tests ---
//
// The token exchange goes through the oauth2 library, which picks its HTTP
// client from the context; tokenRedirectTransport points it at a test server.
// The user info fetch goes through OAuthProvider.HTTPClient.

type mockHTTPClient struct {
	handler http.Handler
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	m.handler.ServeHTTP(rec, req)
	return rec.Result(), nil
}

// tokenRedirectTransport redirects all HTTP requests to a test server.
type tokenRedirectTransport struct {
	targetBaseURL string
}

func (tr *tokenRedirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	newURL := tr.targetBaseURL + req.URL.Path
	if req.URL.RawQuery != "" {
		newURL += "?" + req.URL.RawQuery
	}

	newReq, err := http.NewRequestWithContext(req.Context(), req.Method, newURL, req.Body)
	if err != nil {
		return nil, err
	}
	newReq.Header = req.Header

	return http.DefaultTransport.RoundTrip(newReq)
}

func oauthCtx(t *testing.T, tokenServerURL string) context.Context {
	t.Helper()
	client := &http.Client{Transport: &tokenRedirectTransport{targetBaseURL: tokenServerURL}}
	return context.WithValue(t.Context(), oauth2.HTTPClient, client)
}

func newFakeTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "fake-access-token",
			"token_type":   "Bearer",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newErrorTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "code is expired or invalid",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleProvider_ExchangeCode_HappyPath(t *testing.T) {
	t.Parallel()

	ctx := oauthCtx(t, newFakeTokenServer(t).URL)

	mock := &mockHTTPClient{
		handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer fake-access-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":             "google-123",
				"email":          "alice@acme.edu",
				"verified_email": true,
				"name":           "Alice Smith",
				"picture":        "https://photo.google.com/alice.jpg",
			})
		}),
	}

	p := auth.NewGoogleProvider("test-id", "test-secret", "https://campus.example/cb")
	p.HTTPClient = mock

	info, err := p.ExchangeCode(ctx, "valid-code")

	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "google-123", info.ProviderID)
	assert.Equal(t, "alice@acme.edu", info.Email)
	assert.Equal(t, "Alice Smith", info.Name)
	assert.Equal(t, "https://photo.google.com/alice.jpg", info.AvatarURL)
	assert.True(t, info.VerifiedEmail)
}

func TestGoogleProvider_ExchangeCode_UnverifiedEmail(t *testing.T) {
	t.Parallel()

	ctx := oauthCtx(t, newFakeTokenServer(t).URL)

	p := auth.NewGoogleProvider("test-id", "test-secret", "https://campus.example/cb")
	p.HTTPClient = &mockHTTPClient{
		handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"g-1","email":"mallory@acme.edu"}`))
		}),
	}

	info, err := p.ExchangeCode(ctx, "valid-code")

	require.NoError(t, err)
	assert.False(t, info.VerifiedEmail)
}

func TestExchangeCode_InvalidCode_TokenError(t *testing.T) {
	t.Parallel()

	ctx := oauthCtx(t, newErrorTokenServer(t).URL)

	p := auth.NewGoogleProvider("test-id", "test-secret", "https://campus.example/cb")

	info, err := p.ExchangeCode(ctx, "bad-code")

	require.Error(t, err)
	assert.Nil(t, info)
	assert.Contains(t, err.Error(), "auth.ExchangeCode")
}

func TestExchangeCode_UserInfoHTTPError(t *testing.T) {
	t.Parallel()

	ctx := oauthCtx(t, newFakeTokenServer(t).URL)

	p := auth.NewGoogleProvider("test-id", "test-secret", "https://campus.example/cb")
	p.HTTPClient = &mockHTTPClient{
		handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}),
	}

	info, err := p.ExchangeCode(ctx, "valid-code")

	require.Error(t, err)
	assert.Nil(t, info)
	assert.Contains(t, err.Error(), "user info returned 500")
}

func TestExchangeCode_MalformedGoogleResponse(t *testing.T) {
	t.Parallel()

	ctx := oauthCtx(t, newFakeTokenServer(t).URL)

	p := auth.NewGoogleProvider("test-id", "test-secret", "https://campus.example/cb")
	p.HTTPClient = &mockHTTPClient{
		handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{not valid json`))
		}),
	}

	info, err := p.ExchangeCode(ctx, "valid-code")

	require.Error(t, err)
	assert.Nil(t, info)
	assert.Contains(t, err.Error(), "parseGoogleUserInfo")
}
