package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// callbackResult is what the local redirect handler hands back to the flow.
type callbackResult struct {
	code string
	err  error
}

const callbackSuccessPage = `<!DOCTYPE html>
<html>
<head><title>graphmail</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h2>Sign-in complete</h2>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`

const callbackErrorPage = `<!DOCTYPE html>
<html>
<head><title>graphmail</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h2>Sign-in failed</h2>
<p>%s</p>
<p>Close this window and check the terminal for details.</p>
</body>
</html>`

// interactiveFlow runs the browser-based authorization code flow. It starts
// a local HTTP listener on the redirect URI's port, opens the consent page,
// and waits for the provider to redirect back with a code.
func (m *Manager) interactiveFlow(ctx context.Context) (*oauth2.Token, error) {
	port, err := m.cfg.CallbackPort()
	if err != nil {
		return nil, &AuthenticationError{Op: "interactive", Err: err}
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, &AuthenticationError{
			Op:          "interactive",
			Description: fmt.Sprintf("cannot listen on callback port %d", port),
			Err:         err,
		}
	}

	state := uuid.NewString()
	results := make(chan callbackResult, 1)

	// Only the first callback counts; a retried redirect must not leave its
	// handler blocked on the channel.
	deliver := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errCode := q.Get("error"); errCode != "" {
			desc := q.Get("error_description")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, callbackErrorPage, errCode)
			deliver(callbackResult{err: &AuthenticationError{
				Op: "interactive", Code: errCode, Description: desc,
			}})
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(callbackResult{err: &AuthenticationError{
				Op: "interactive", Description: "state parameter mismatch in callback",
			}})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: &AuthenticationError{
				Op: "interactive", Description: "callback carried no authorization code",
			}})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, callbackSuccessPage)
		deliver(callbackResult{code: code})
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln) //nolint:errcheck // returns ErrServerClosed on shutdown

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	conf := m.oauthConfig()
	authURL := conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("response_mode", "query"))

	fmt.Fprintf(m.prompt, "Opening browser for sign-in. If it does not open, visit:\n\n  %s\n\n", authURL)
	if err := m.openBrowser(authURL); err != nil {
		m.logger.Debug("could not open browser", "error", err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.AuthTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return nil, &AuthenticationError{
			Op:          "interactive",
			Description: "timed out waiting for browser sign-in",
			Err:         ctx.Err(),
		}
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := conf.Exchange(m.tokenContext(ctx), res.code)
		if err != nil {
			return nil, oauthError("interactive", err)
		}
		return tok, nil
	}
}
