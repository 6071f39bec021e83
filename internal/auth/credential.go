package auth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Method identifies an OAuth2 grant flow.
type Method string

const (
	// MethodInteractive is the browser-based authorization code flow with a
	// local callback listener.
	MethodInteractive Method = "interactive"
	// MethodDevice is the device code flow for hosts without a browser.
	MethodDevice Method = "device"
	// MethodClientCredentials is the application-only flow. Credentials
	// acquired this way carry no refresh token and are re-acquired in full
	// when they expire.
	MethodClientCredentials Method = "client_credentials"
)

// ParseMethod maps a user-supplied flow name to a Method.
func ParseMethod(s string) (Method, bool) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "interactive", "code", "authorization_code":
		return MethodInteractive, true
	case "device", "device_code":
		return MethodDevice, true
	case "client_credentials", "app":
		return MethodClientCredentials, true
	}
	return "", false
}

// ExpiryMargin is how close to expiry a token may be before GetValidToken
// refreshes it instead of handing it out.
const ExpiryMargin = 5 * time.Minute

// Credential is the cached authentication state. It is exclusively owned by
// the Manager; callers only ever receive the access token string or a copy.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Account      string    `json:"account,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Method       Method    `json:"method"`
}

// valid reports whether the access token is usable as of now, keeping the
// expiry margin.
func (c *Credential) valid(now time.Time) bool {
	return c.AccessToken != "" && now.Add(ExpiryMargin).Before(c.ExpiresAt)
}

// clone returns a copy safe to hand to callers.
func (c *Credential) clone() Credential {
	out := *c
	out.Scopes = append([]string(nil), c.Scopes...)
	return out
}

// credentialFromToken builds a Credential from an oauth2 token response.
func credentialFromToken(tok *oauth2.Token, method Method) *Credential {
	cred := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Method:       method,
		Account:      accountFromToken(tok.AccessToken),
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		cred.Scopes = strings.Fields(scope)
	}
	return cred
}

// AuthStatus describes the current authentication state without side effects.
type AuthStatus struct {
	Authenticated bool      `json:"authenticated"`
	Account       string    `json:"account,omitempty"`
	Method        Method    `json:"method,omitempty"`
	Scopes        []string  `json:"scopes,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}
