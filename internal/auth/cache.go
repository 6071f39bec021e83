package auth

import (
	"encoding/json"
	"log/slog"

	"github.com/graphmail/graphmail/internal/store"
)

// minCacheBytes is the smallest serialized blob that can hold a credential.
// The cache library semantics carried over from the original deployment mean
// an "empty" cache may serialize as a short non-empty string ("{}"), so
// anything at or below this length is treated as no cache at all.
const minCacheBytes = 2

// tokenCache persists a single Credential as an opaque JSON blob. Loads are
// lenient: absent, short, or undecodable content all read as "no credential",
// never as an error.
type tokenCache struct {
	path   string
	logger *slog.Logger
}

func newTokenCache(path string, logger *slog.Logger) *tokenCache {
	return &tokenCache{path: path, logger: logger}
}

// Load returns the cached credential, or nil when none is usable.
func (c *tokenCache) Load() *Credential {
	data, err := store.ReadFile(c.path)
	if err != nil {
		c.logger.Warn("token cache unreadable, treating as empty", "path", c.path, "error", err.Error())
		return nil
	}
	if len(data) <= minCacheBytes {
		return nil
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		// Possibly a partial write from a concurrent invocation.
		c.logger.Warn("token cache corrupt, treating as empty", "path", c.path)
		return nil
	}
	if cred.AccessToken == "" {
		return nil
	}
	return &cred
}

// Save persists the credential atomically.
func (c *tokenCache) Save(cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return &TokenCacheError{Path: c.path, Err: err}
	}
	if err := store.WriteFileAtomic(c.path, data, 0o600); err != nil {
		return &TokenCacheError{Path: c.path, Err: err}
	}
	return nil
}

// Clear removes the cache file. Idempotent.
func (c *tokenCache) Clear() error {
	if err := store.Remove(c.path); err != nil {
		return &TokenCacheError{Path: c.path, Err: err}
	}
	return nil
}
