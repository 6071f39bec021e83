package auth

import (
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// accountFromToken extracts a human-readable account identifier from an
// access token without contacting the network. Verification is skipped on
// purpose: the token was just issued to us over TLS and we only want the
// identity claims for display.
func accountFromToken(raw string) string {
	if raw == "" {
		return ""
	}
	tok, err := jwt.ParseString(raw, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return ""
	}
	for _, claim := range []string{"preferred_username", "upn", "unique_name"} {
		if v, ok := tok.Get(claim); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	// App-only tokens carry no user identity; fall back to the app id.
	if v, ok := tok.Get("appid"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
