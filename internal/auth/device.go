package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// deviceFlow runs the device code flow: print the code and verification URL,
// then poll the token endpoint until the user completes sign-in elsewhere.
func (m *Manager) deviceFlow(ctx context.Context) (*oauth2.Token, error) {
	conf := m.oauthConfig()
	// The device flow has no redirect.
	conf.RedirectURL = ""

	ctx, cancel := context.WithTimeout(m.tokenContext(ctx), m.cfg.AuthTimeout)
	defer cancel()

	resp, err := conf.DeviceAuth(ctx)
	if err != nil {
		return nil, oauthError("device", err)
	}

	if resp.VerificationURIComplete != "" {
		fmt.Fprintf(m.prompt, "To sign in, visit:\n\n  %s\n\n", resp.VerificationURIComplete)
	} else {
		fmt.Fprintf(m.prompt, "To sign in, visit %s and enter the code: %s\n\n",
			resp.VerificationURI, resp.UserCode)
	}

	tok, err := conf.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, oauthError("device", err)
	}
	return tok, nil
}
