package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/graphmail/graphmail/internal/config"
)

// tokenEndpoint is a fake OAuth2 token endpoint recording how often it was
// hit and what grant types it saw.
type tokenEndpoint struct {
	mu     sync.Mutex
	calls  int
	grants []string
	status int
	token  map[string]any
}

func newTokenEndpoint() *tokenEndpoint {
	return &tokenEndpoint{
		status: http.StatusOK,
		token: map[string]any{
			"access_token":  "fresh-access-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "fresh-refresh-token",
			"scope":         "Mail.Read Mail.Send",
		},
	}
}

func (e *tokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_ = r.ParseForm()
	e.calls++
	e.grants = append(e.grants, r.FormValue("grant_type"))

	w.Header().Set("Content-Type", "application/json")
	if e.status != http.StatusOK {
		w.WriteHeader(e.status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "the refresh token has expired",
		})
		return
	}
	_ = json.NewEncoder(w).Encode(e.token)
}

func testManager(t *testing.T, ep *tokenEndpoint) (*Manager, *tokenCache) {
	t.Helper()

	srv := httptest.NewServer(ep)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		TenantID:       "tenant",
		RedirectURI:    "http://localhost:18999",
		Scopes:         []string{"Mail.Read", "Mail.Send"},
		TokenCachePath: filepath.Join(t.TempDir(), "token_cache.json"),
		HTTPTimeout:    5 * time.Second,
		AuthTimeout:    5 * time.Second,
	}

	m := NewManager(cfg, testLogger(),
		WithEndpoint(oauth2.Endpoint{
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/token",
		}),
		WithHTTPClient(srv.Client()),
	)
	return m, m.cache
}

func sometimeValid() time.Time  { return time.Now().Add(time.Hour) }
func withinMargin() time.Time   { return time.Now().Add(2 * time.Minute) }
func alreadyExpired() time.Time { return time.Now().Add(-time.Hour) }

func TestGetValidTokenCachedStillValid(t *testing.T) {
	ep := newTokenEndpoint()
	m, cache := testManager(t, ep)
	require.NoError(t, cache.Save(&Credential{
		AccessToken: "cached-token",
		ExpiresAt:   sometimeValid(),
		Method:      MethodInteractive,
	}))

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", tok)
	assert.Zero(t, ep.calls, "a valid cached token must not hit the network")
}

func TestGetValidTokenRefreshesNearExpiry(t *testing.T) {
	ep := newTokenEndpoint()
	m, cache := testManager(t, ep)
	require.NoError(t, cache.Save(&Credential{
		AccessToken:  "stale-token",
		RefreshToken: "old-refresh-token",
		ExpiresAt:    withinMargin(),
		Account:      "user@example.com",
		Method:       MethodInteractive,
	}))

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-access-token", tok)
	assert.Equal(t, 1, ep.calls)
	assert.Equal(t, []string{"refresh_token"}, ep.grants)

	// The renewed credential is persisted, account carried over.
	got := cache.Load()
	require.NotNil(t, got)
	assert.Equal(t, "fresh-access-token", got.AccessToken)
	assert.Equal(t, "fresh-refresh-token", got.RefreshToken)
	assert.Equal(t, "user@example.com", got.Account)
	assert.Equal(t, MethodInteractive, got.Method)
}

func TestGetValidTokenKeepsOldRefreshToken(t *testing.T) {
	ep := newTokenEndpoint()
	delete(ep.token, "refresh_token")
	m, cache := testManager(t, ep)
	require.NoError(t, cache.Save(&Credential{
		AccessToken:  "stale-token",
		RefreshToken: "old-refresh-token",
		ExpiresAt:    alreadyExpired(),
		Method:       MethodDevice,
	}))

	_, err := m.GetValidToken(context.Background())
	require.NoError(t, err)

	got := cache.Load()
	require.NotNil(t, got)
	assert.Equal(t, "old-refresh-token", got.RefreshToken)
}

func TestGetValidTokenRefreshFailureClearsCache(t *testing.T) {
	ep := newTokenEndpoint()
	ep.status = http.StatusBadRequest
	m, cache := testManager(t, ep)
	require.NoError(t, cache.Save(&Credential{
		AccessToken:  "stale-token",
		RefreshToken: "dead-refresh-token",
		ExpiresAt:    alreadyExpired(),
		Method:       MethodInteractive,
	}))

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "graphmail login")
	assert.Equal(t, 1, ep.calls, "exactly one refresh attempt")

	assert.Nil(t, cache.Load(), "failed refresh must clear the cache")
	assert.False(t, m.AuthStatus().Authenticated)
}

func TestGetValidTokenTransportFailureKeepsCache(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refresh calls now fail before reaching any provider

	cfg := &config.Config{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		TenantID:       "tenant",
		RedirectURI:    "http://localhost:18999",
		Scopes:         []string{"Mail.Read"},
		TokenCachePath: filepath.Join(t.TempDir(), "token_cache.json"),
		HTTPTimeout:    time.Second,
	}
	m := NewManager(cfg, testLogger(),
		WithEndpoint(oauth2.Endpoint{
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/token",
		}),
		WithHTTPClient(&http.Client{Timeout: time.Second}),
	)
	require.NoError(t, m.cache.Save(&Credential{
		AccessToken:  "stale-token",
		RefreshToken: "still-good-refresh-token",
		ExpiresAt:    alreadyExpired(),
		Method:       MethodInteractive,
	}))

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "graphmail login",
		"a network blip must not demand a re-login")

	cred := m.cache.Load()
	require.NotNil(t, cred, "transport failure must not clear the cache")
	assert.Equal(t, "still-good-refresh-token", cred.RefreshToken)
	assert.True(t, m.AuthStatus().Authenticated, "the refresh token is still usable")
}

func TestGetValidTokenNoCachedCredential(t *testing.T) {
	ep := newTokenEndpoint()
	m, _ := testManager(t, ep)

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, ep.calls)
}

func TestGetValidTokenClientCredentialsReacquires(t *testing.T) {
	ep := newTokenEndpoint()
	m, cache := testManager(t, ep)
	require.NoError(t, cache.Save(&Credential{
		AccessToken: "expired-app-token",
		ExpiresAt:   alreadyExpired(),
		Method:      MethodClientCredentials,
	}))

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-access-token", tok)
	assert.Equal(t, []string{"client_credentials"}, ep.grants)

	got := cache.Load()
	require.NotNil(t, got)
	assert.Equal(t, MethodClientCredentials, got.Method)
}

func TestAuthStatusHasNoSideEffects(t *testing.T) {
	ep := newTokenEndpoint()
	m, cache := testManager(t, ep)
	require.NoError(t, cache.Save(&Credential{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    alreadyExpired(),
		Account:      "user@example.com",
		Method:       MethodInteractive,
		Scopes:       []string{"Mail.Read"},
	}))

	status := m.AuthStatus()
	assert.True(t, status.Authenticated, "expired token with refresh token still counts as signed in")
	assert.Equal(t, "user@example.com", status.Account)
	assert.Equal(t, MethodInteractive, status.Method)
	assert.Zero(t, ep.calls, "status must not trigger a refresh")

	got := cache.Load()
	require.NotNil(t, got)
	assert.Equal(t, "stale-token", got.AccessToken, "status must not rewrite the cache")
}

func TestAuthStatusLoggedOut(t *testing.T) {
	m, _ := testManager(t, newTokenEndpoint())
	status := m.AuthStatus()
	assert.False(t, status.Authenticated)
	assert.Empty(t, status.Account)
}

func TestLogoutIdempotent(t *testing.T) {
	m, cache := testManager(t, newTokenEndpoint())
	require.NoError(t, cache.Save(&Credential{AccessToken: "tok", ExpiresAt: sometimeValid()}))

	require.NoError(t, m.Logout())
	assert.False(t, m.AuthStatus().Authenticated)
	require.NoError(t, m.Logout(), "logging out twice is fine")
}

func TestAuthenticateUnknownMethod(t *testing.T) {
	m, _ := testManager(t, newTokenEndpoint())
	_, err := m.Authenticate(context.Background(), Method("password"))
	require.Error(t, err)
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
		ok   bool
	}{
		{"interactive", MethodInteractive, true},
		{"code", MethodInteractive, true},
		{"device", MethodDevice, true},
		{"device-code", MethodDevice, true},
		{"client_credentials", MethodClientCredentials, true},
		{"CLIENT-CREDENTIALS", MethodClientCredentials, true},
		{"app", MethodClientCredentials, true},
		{"password", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMethod(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripReservedScopes(t *testing.T) {
	got := stripReservedScopes([]string{"openid", "Mail.Read", "profile", "offline_access", "User.Read"})
	assert.Equal(t, []string{"Mail.Read", "User.Read"}, got)
}
