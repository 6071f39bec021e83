package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Folder identifiers understood by the Graph API surface.
const (
	FolderInbox     = "inbox"
	FolderSentItems = "sentItems"
	FolderDrafts    = "drafts"
)

// GraphBaseURL is the Microsoft Graph endpoint all requests go to.
const GraphBaseURL = "https://graph.microsoft.com/v1.0"

// defaultScopes are the application permissions requested during user
// authentication. Reserved scopes (openid, profile, offline_access) must not
// appear here; the identity provider injects them itself and rejects requests
// that list them explicitly.
var defaultScopes = []string{"Mail.Read", "Mail.ReadWrite", "Mail.Send", "User.Read"}

// placeholderValues are sentinel strings that ship in example configuration
// files. A required setting carrying one of these is treated as missing.
var placeholderValues = map[string]bool{
	"your-client-id":     true,
	"your-client-secret": true,
	"your-tenant-id":     true,
	"changeme":           true,
	"<client-id>":        true,
	"<client-secret>":    true,
	"<tenant-id>":        true,
}

// Config is the flat application configuration. It is read-only after Load;
// components receive it by pointer and never mutate it.
type Config struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	TenantID     string   `mapstructure:"tenant_id"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`

	DefaultPageSize int `mapstructure:"default_page_size"`
	DefaultDays     int `mapstructure:"default_days"`

	TokenCachePath  string `mapstructure:"token_cache_path"`
	DeltaCursorPath string `mapstructure:"delta_cursor_path"`

	// FilterSenders lists sender addresses or display names (case-insensitive
	// substrings) excluded from listings.
	FilterSenders []string `mapstructure:"filter_senders"`

	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
}

// ValidationError reports required settings that are missing or still carry
// placeholder values. It fails fast at startup, before any network call.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration incomplete: missing required settings: %s",
		strings.Join(e.Missing, ", "))
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/graphmail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "graphmail", "config.yaml")
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "graphmail")
}

// Load reads configuration from the given YAML file path using Viper.
// Every key can be overridden through a GRAPHMAIL_* environment variable
// (e.g. GRAPHMAIL_CLIENT_ID). A missing file is not an error; env vars and
// defaults still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("graphmail")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("tenant_id", "common")
	v.SetDefault("redirect_uri", "http://localhost:8000")
	v.SetDefault("scopes", defaultScopes)
	v.SetDefault("default_page_size", 50)
	v.SetDefault("default_days", 7)
	v.SetDefault("token_cache_path", filepath.Join(defaultCacheDir(), "token_cache.json"))
	v.SetDefault("delta_cursor_path", filepath.Join(defaultCacheDir(), "delta_cursors.json"))
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("auth_timeout", 5*time.Minute)

	// Viper only consults env vars for keys it has seen; make sure the
	// credential keys are always bound even without a config file.
	for _, key := range []string{"client_id", "client_secret", "tenant_id", "redirect_uri"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Scopes = splitList(cfg.Scopes)
	cfg.FilterSenders = splitList(cfg.FilterSenders)

	return cfg, nil
}

// SaveFilterSenders rewrites the filter_senders key in the configuration file
// at path, preserving every other key. The file is created when it does not
// exist yet. Defaults and environment overrides are deliberately left out so
// the written file only carries what the user actually set.
func SaveFilterSenders(path string, senders []string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.Set("filter_senders", senders)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Validate checks that every required setting is present and not a
// placeholder. Optional settings with invalid values are normalized instead.
func (c *Config) Validate() error {
	var missing []string

	check := func(name, value string) {
		if value == "" || placeholderValues[strings.ToLower(value)] {
			missing = append(missing, name)
		}
	}

	check("client_id", c.ClientID)
	check("client_secret", c.ClientSecret)
	check("tenant_id", c.TenantID)
	check("redirect_uri", c.RedirectURI)

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	if _, err := c.CallbackPort(); err != nil {
		return &ValidationError{Missing: []string{"redirect_uri"}}
	}

	return nil
}

// CallbackPort extracts the local listener port from the redirect URI.
func (c *Config) CallbackPort() (int, error) {
	u, err := url.Parse(c.RedirectURI)
	if err != nil {
		return 0, fmt.Errorf("invalid redirect_uri %q: %w", c.RedirectURI, err)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			return 80, nil
		case "https":
			return 443, nil
		}
		return 0, fmt.Errorf("redirect_uri %q has no port", c.RedirectURI)
	}
	var n int
	if _, err := fmt.Sscanf(port, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("redirect_uri %q has invalid port %q", c.RedirectURI, port)
	}
	return n, nil
}

// splitList flattens entries that arrived as a single comma-separated string
// (the env-var form) into individual trimmed values.
func splitList(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
