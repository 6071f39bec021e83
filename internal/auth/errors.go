package auth

import "fmt"

// AuthenticationError reports a failed or impossible authentication step.
// Code and Description carry the provider's OAuth error fields when they are
// available.
type AuthenticationError struct {
	// Op names the step that failed, e.g. "interactive", "refresh".
	Op string
	// Code is the OAuth error code from the provider, if any.
	Code string
	// Description is the provider's human-readable error description.
	Description string
	// Err is the underlying error, if any.
	Err error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authentication failed (%s)", e.Op)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// reauthError builds the error returned when no silent path to a valid token
// exists. The message tells the user exactly what to run.
func reauthError(op string, err error) *AuthenticationError {
	return &AuthenticationError{
		Op:          op,
		Description: "re-authentication required: run 'graphmail login'",
		Err:         err,
	}
}

// TokenCacheError reports a token cache file that could not be written or
// removed. Unreadable caches are not errors; they are treated as empty.
type TokenCacheError struct {
	Path string
	Err  error
}

func (e *TokenCacheError) Error() string {
	return fmt.Sprintf("token cache %s: %v", e.Path, e.Err)
}

func (e *TokenCacheError) Unwrap() error { return e.Err }
