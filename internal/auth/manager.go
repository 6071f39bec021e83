package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"

	"github.com/graphmail/graphmail/internal/config"
	"github.com/graphmail/graphmail/internal/logging"
)

// reservedScopes are injected by the identity provider on its own; listing
// them in a token request is rejected.
var reservedScopes = map[string]bool{
	"openid":         true,
	"profile":        true,
	"offline_access": true,
}

// graphDefaultScope is the only scope the client credentials flow accepts.
const graphDefaultScope = "https://graph.microsoft.com/.default"

// Manager owns the token cache and runs the OAuth2 flows. All methods are
// safe for concurrent use; token acquisition and refresh are serialized so a
// burst of callers triggers at most one provider round trip.
type Manager struct {
	cfg    *config.Config
	cache  *tokenCache
	logger *slog.Logger

	mu   sync.Mutex
	cred *Credential

	endpoint    oauth2.Endpoint
	httpClient  *http.Client
	openBrowser func(url string) error
	now         func() time.Time
	prompt      io.Writer
}

// Option adjusts Manager construction. Options exist mostly so tests can
// point the flows at a local server and freeze time.
type Option func(*Manager)

// WithHTTPClient sets the HTTP client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithEndpoint overrides the OAuth2 endpoint.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(m *Manager) { m.endpoint = ep }
}

// WithBrowserOpener overrides how the interactive flow opens the consent URL.
func WithBrowserOpener(open func(url string) error) Option {
	return func(m *Manager) { m.openBrowser = open }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPrompt sets the writer user-facing flow instructions go to.
func WithPrompt(w io.Writer) Option {
	return func(m *Manager) { m.prompt = w }
}

// NewManager builds a Manager for the given configuration. The token cache is
// read lazily on first use.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		cache:       newTokenCache(cfg.TokenCachePath, logger),
		logger:      logger,
		endpoint:    microsoft.AzureADEndpoint(cfg.TenantID),
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		openBrowser: openBrowser,
		now:         time.Now,
		prompt:      os.Stderr,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// oauthConfig builds the oauth2 config shared by the user flows.
func (m *Manager) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		Endpoint:     m.endpoint,
		RedirectURL:  m.cfg.RedirectURI,
		Scopes:       stripReservedScopes(m.cfg.Scopes),
	}
}

// tokenContext returns a context carrying the manager's HTTP client, so the
// oauth2 package uses it for token endpoint calls.
func (m *Manager) tokenContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// Authenticate runs the given flow to completion and persists the resulting
// credential. An existing cached credential for any method is replaced.
func (m *Manager) Authenticate(ctx context.Context, method Method) (*AuthStatus, error) {
	var (
		tok *oauth2.Token
		err error
	)
	switch method {
	case MethodInteractive:
		tok, err = m.interactiveFlow(ctx)
	case MethodDevice:
		tok, err = m.deviceFlow(ctx)
	case MethodClientCredentials:
		tok, err = m.clientCredentialsToken(ctx)
	default:
		return nil, &AuthenticationError{Op: "authenticate", Description: "unknown method " + string(method)}
	}
	if err != nil {
		m.logger.Error("authentication failed",
			logging.Method(string(method)), logging.Err(err))
		return nil, err
	}

	cred := credentialFromToken(tok, method)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
	if err := m.cache.Save(cred); err != nil {
		// An unwritable cache costs a re-login next run, nothing more.
		m.logger.Warn("could not persist credential", logging.Err(err))
	}

	m.logger.Info("authenticated",
		logging.Method(string(method)),
		logging.Account(cred.Account),
		"expires_at", cred.ExpiresAt)

	status := m.statusLocked()
	return &status, nil
}

// GetValidToken returns an access token usable right now. A token within the
// expiry margin is refreshed silently: exactly one refresh attempt for user
// flows, a full re-acquire for client credentials. The cache is cleared only
// when the provider rejects the renewal; transport failures keep the
// credential so a later call can retry.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred := m.credLocked()
	if cred == nil {
		return "", reauthError("token", nil)
	}
	if cred.valid(m.now()) {
		return cred.AccessToken, nil
	}

	fresh, err := m.renewLocked(ctx, cred)
	if err != nil {
		m.logger.Warn("silent token renewal failed",
			logging.Method(string(cred.Method)), logging.Err(err))
		if !renewalRejected(err) {
			// The refresh token may still be good; keep the credential so
			// the next call retries instead of forcing a re-login.
			return "", err
		}
		m.cred = nil
		if cerr := m.cache.Clear(); cerr != nil {
			m.logger.Warn("could not clear token cache", logging.Err(cerr))
		}
		return "", reauthError("refresh", err)
	}

	// Renewal responses may omit the refresh token; keep the old one.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	if fresh.Account == "" {
		fresh.Account = cred.Account
	}
	m.cred = fresh
	if err := m.cache.Save(fresh); err != nil {
		m.logger.Warn("could not persist renewed credential", logging.Err(err))
	}
	m.logger.Debug("token renewed",
		logging.Method(string(fresh.Method)),
		"expires_at", fresh.ExpiresAt)
	return fresh.AccessToken, nil
}

// renewLocked acquires a fresh credential without user interaction.
// Call with m.mu held.
func (m *Manager) renewLocked(ctx context.Context, cred *Credential) (*Credential, error) {
	if cred.Method == MethodClientCredentials {
		tok, err := m.clientCredentialsToken(ctx)
		if err != nil {
			return nil, err
		}
		return credentialFromToken(tok, MethodClientCredentials), nil
	}

	if cred.RefreshToken == "" {
		return nil, &AuthenticationError{Op: "refresh", Description: "no refresh token in cache"}
	}

	conf := m.oauthConfig()
	src := conf.TokenSource(m.tokenContext(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, oauthError("refresh", err)
	}
	return credentialFromToken(tok, cred.Method), nil
}

// credLocked returns the in-memory credential, loading the cache on first
// use. Call with m.mu held.
func (m *Manager) credLocked() *Credential {
	if m.cred == nil {
		m.cred = m.cache.Load()
	}
	return m.cred
}

// AuthStatus reports the current authentication state. It never triggers a
// refresh or any network call.
func (m *Manager) AuthStatus() AuthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() AuthStatus {
	cred := m.credLocked()
	if cred == nil {
		return AuthStatus{}
	}
	c := cred.clone()
	return AuthStatus{
		Authenticated: c.valid(m.now()) || c.RefreshToken != "" || c.Method == MethodClientCredentials,
		Account:       c.Account,
		Method:        c.Method,
		Scopes:        c.Scopes,
		ExpiresAt:     c.ExpiresAt,
	}
}

// Logout drops the in-memory credential and removes the cache file.
// Logging out while already logged out is not an error.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cred = nil
	if err := m.cache.Clear(); err != nil {
		return err
	}
	m.logger.Info("logged out")
	return nil
}

// clientCredentialsToken acquires an app-only token. The flow accepts only
// the .default scope regardless of the configured user scopes.
func (m *Manager) clientCredentialsToken(ctx context.Context) (*oauth2.Token, error) {
	conf := &clientcredentials.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		TokenURL:     m.endpoint.TokenURL,
		Scopes:       []string{graphDefaultScope},
	}
	tok, err := conf.Token(m.tokenContext(ctx))
	if err != nil {
		return nil, oauthError("client_credentials", err)
	}
	return tok, nil
}

// renewalRejected reports whether a renewal failure is permanent: the
// provider answered and refused the grant, or there was nothing to renew
// with. Transport failures are not rejections; the stored refresh token may
// still be good.
func renewalRejected(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}
	var authErr *AuthenticationError
	return errors.As(err, &authErr) && authErr.Err == nil
}

// oauthError wraps a token endpoint failure, lifting the provider's error
// code and description when the oauth2 package exposes them.
func oauthError(op string, err error) *AuthenticationError {
	authErr := &AuthenticationError{Op: op, Err: err}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		authErr.Code = retrieveErr.ErrorCode
		authErr.Description = retrieveErr.ErrorDescription
	}
	return authErr
}

// stripReservedScopes removes scopes the provider injects itself.
func stripReservedScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if !reservedScopes[s] {
			out = append(out, s)
		}
	}
	return out
}
