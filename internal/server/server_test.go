package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmail/graphmail/internal/auth"
	"github.com/graphmail/graphmail/internal/graph"
)

type fakeAuth struct {
	status    auth.AuthStatus
	token     string
	tokenErr  error
	loggedOut bool
}

func (f *fakeAuth) AuthStatus() auth.AuthStatus { return f.status }
func (f *fakeAuth) Logout() error               { f.loggedOut = true; return nil }
func (f *fakeAuth) GetValidToken(context.Context) (string, error) {
	return f.token, f.tokenErr
}

type fakeMailbox struct {
	messages   []graph.Message
	message    *graph.Message
	user       *graph.User
	err        error
	lastFolder string
	lastOpts   graph.ListOptions
	sent       *graph.OutgoingMessage
	readIDs    []string
}

func (f *fakeMailbox) Me(context.Context) (*graph.User, error) { return f.user, f.err }

func (f *fakeMailbox) ListMessages(_ context.Context, folder string, opts graph.ListOptions) ([]graph.Message, error) {
	f.lastFolder = folder
	f.lastOpts = opts
	return f.messages, f.err
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (*graph.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.message, nil
}

func (f *fakeMailbox) SendMessage(_ context.Context, out *graph.OutgoingMessage) error {
	f.sent = out
	return f.err
}

func (f *fakeMailbox) MarkAsRead(_ context.Context, id string) error {
	f.readIDs = append(f.readIDs, id)
	return f.err
}

type fakeSyncer struct {
	result *graph.DeltaResult
	err    error
	folder string
}

func (f *fakeSyncer) FetchChanges(_ context.Context, folder string) (*graph.DeltaResult, error) {
	f.folder = folder
	return f.result, f.err
}

func testServer(authn *fakeAuth, mailbox *fakeMailbox, syncer *fakeSyncer) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{PageSize: 25}, authn, mailbox, syncer, logger)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAuthStatusEndpoint(t *testing.T) {
	authn := &fakeAuth{status: auth.AuthStatus{
		Authenticated: true,
		Account:       "user@example.com",
		Method:        auth.MethodInteractive,
	}}
	s := testServer(authn, &fakeMailbox{}, &fakeSyncer{})

	w := doRequest(t, s, http.MethodGet, "/api/auth/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "user@example.com", body["account"])
}

func TestLogoutEndpoint(t *testing.T) {
	authn := &fakeAuth{}
	s := testServer(authn, &fakeMailbox{}, &fakeSyncer{})

	w := doRequest(t, s, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, authn.loggedOut)
}

func TestTokenEndpointUnauthenticated(t *testing.T) {
	authn := &fakeAuth{tokenErr: &auth.AuthenticationError{Op: "token"}}
	s := testServer(authn, &fakeMailbox{}, &fakeSyncer{})

	w := doRequest(t, s, http.MethodGet, "/api/auth/token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInboxEndpoint(t *testing.T) {
	mailbox := &fakeMailbox{messages: []graph.Message{
		{ID: "m1", Subject: "hello"},
		{ID: "m2", Subject: "world"},
	}}
	s := testServer(&fakeAuth{}, mailbox, &fakeSyncer{})

	w := doRequest(t, s, http.MethodGet, "/api/emails/inbox?limit=5&unread=true&days=3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "inbox", mailbox.lastFolder)
	assert.Equal(t, 5, mailbox.lastOpts.Top)
	assert.True(t, mailbox.lastOpts.UnreadOnly)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -3), mailbox.lastOpts.Since, time.Minute)

	body := decode(t, w)
	assert.Equal(t, float64(2), body["count"])
}

func TestSentEndpointUsesDefaults(t *testing.T) {
	mailbox := &fakeMailbox{}
	s := testServer(&fakeAuth{}, mailbox, &fakeSyncer{})

	w := doRequest(t, s, http.MethodGet, "/api/emails/sent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sentItems", mailbox.lastFolder)
	assert.Equal(t, 25, mailbox.lastOpts.Top)
}

func TestSearchEndpoint(t *testing.T) {
	mailbox := &fakeMailbox{}
	s := testServer(&fakeAuth{}, mailbox, &fakeSyncer{})

	w := doRequest(t, s, http.MethodGet, "/api/emails/search?q=invoice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "invoice", mailbox.lastOpts.Search)

	w = doRequest(t, s, http.MethodGet, "/api/emails/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeltaEndpoint(t *testing.T) {
	syncer := &fakeSyncer{result: &graph.DeltaResult{
		Folder:   "inbox",
		Messages: []graph.Message{{ID: "m1"}},
		FullSync: true,
	}}
	s := testServer(&fakeAuth{}, &fakeMailbox{}, syncer)

	w := doRequest(t, s, http.MethodGet, "/api/emails/delta/inbox", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inbox", syncer.folder)

	body := decode(t, w)
	assert.Equal(t, true, body["full_sync"])
}

func TestGetMessageEndpoint(t *testing.T) {
	mailbox := &fakeMailbox{message: &graph.Message{ID: "m1", Subject: "hello"}}
	s := testServer(&fakeAuth{}, mailbox, &fakeSyncer{})

	w := doRequest(t, s, http.MethodGet, "/api/emails/m1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", decode(t, w)["subject"])
}

func TestGetMessageUpstreamError(t *testing.T) {
	mailbox := &fakeMailbox{err: &graph.APIError{StatusCode: http.StatusNotFound, Code: "ErrorItemNotFound"}}
	s := testServer(&fakeAuth{}, mailbox, &fakeSyncer{})

	w := doRequest(t, s, http.MethodGet, "/api/emails/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ErrorItemNotFound", decode(t, w)["code"])
}

func TestSendEndpoint(t *testing.T) {
	mailbox := &fakeMailbox{}
	s := testServer(&fakeAuth{}, mailbox, &fakeSyncer{})

	w := doRequest(t, s, http.MethodPost, "/api/emails/send", map[string]any{
		"to":      []string{"bob@example.com"},
		"subject": "Hi",
		"body":    "hello there",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, mailbox.sent)
	assert.Equal(t, []string{"bob@example.com"}, mailbox.sent.To)

	// Missing recipients is rejected before reaching the mailbox.
	mailbox.sent = nil
	w = doRequest(t, s, http.MethodPost, "/api/emails/send", map[string]any{"subject": "Hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mailbox.sent)
}

func TestMarkReadEndpoint(t *testing.T) {
	mailbox := &fakeMailbox{}
	s := testServer(&fakeAuth{}, mailbox, &fakeSyncer{})

	w := doRequest(t, s, http.MethodPost, "/api/emails/m1/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"m1"}, mailbox.readIDs)
}

func TestHealthEndpoints(t *testing.T) {
	s := testServer(&fakeAuth{}, &fakeMailbox{}, &fakeSyncer{})

	w := doRequest(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.health.SetReady(false)
	w = doRequest(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(&fakeAuth{}, &fakeMailbox{}, &fakeSyncer{})

	// Generate one request so the counter has a sample.
	doRequest(t, s, http.MethodGet, "/api/auth/status", nil)

	w := doRequest(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graphmail_api_requests_total")
}
