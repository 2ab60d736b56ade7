package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort               = 3000
	DefaultUpstreamBaseURL    = "http://localhost:8000/api"
	DefaultClientBaseURL      = "http://localhost:3000"
	DefaultTokenPath          = "oauth/token"
	DefaultClientID           = "test-client"
	DefaultClientSecret       = "test-secret"
	DefaultMinLoadingTimeMS   = 500
	DefaultRequestTimeout     = 30
	DefaultRateLimitRequests  = 60
	DefaultRateLimitWindowSec = 60
	DefaultSessionTable       = "gateway_sessions"
)

// DefaultAllowedPrefixes are the upstream resources reachable through the proxy.
var DefaultAllowedPrefixes = []string{"candidates", "questions", "topics", "languages", "positions", "submissions"}

// Config is the gateway configuration.
type Config struct {
	SDKConfig `yaml:",inline"`

	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// Production marks cookies Secure. Also set by NODE_ENV or APP_ENV=production.
	Production bool `yaml:"production" json:"production"`

	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB caps the log directory; the oldest files are deleted first.
	// <= 0 disables the cap.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// PagesDir optionally serves a static front-end behind the page guard.
	PagesDir string `yaml:"pages-dir" json:"pages-dir"`

	Upstream  UpstreamConfig  `yaml:"upstream" json:"upstream"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	RateLimit RateLimitConfig `yaml:"rate-limit" json:"rate-limit"`
	Proxy     ProxyConfig     `yaml:"proxy" json:"proxy"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Client    ClientConfig    `yaml:"client" json:"client"`
}

// UpstreamConfig locates the external assessment API.
type UpstreamConfig struct {
	// BaseURL is API_BASE_URL; a trailing slash is trimmed.
	BaseURL        string `yaml:"base-url" json:"base-url"`
	TimeoutSeconds int    `yaml:"timeout-seconds" json:"timeout-seconds"`
}

// AuthConfig describes the upstream OAuth token endpoint.
type AuthConfig struct {
	// TokenPath is resolved against the upstream base URL.
	TokenPath    string `yaml:"token-path" json:"token-path"`
	ClientID     string `yaml:"client-id" json:"client-id"`
	ClientSecret string `yaml:"client-secret" json:"-"`
}

// RateLimitConfig configures the per-client sliding window on /api routes.
type RateLimitConfig struct {
	Disabled      bool `yaml:"disabled" json:"disabled"`
	Requests      int  `yaml:"requests" json:"requests"`
	WindowSeconds int  `yaml:"window-seconds" json:"window-seconds"`
}

// ProxyConfig controls what the proxy route forwards.
type ProxyConfig struct {
	// AllowedPrefixes lists the first path segments that may be forwarded.
	AllowedPrefixes []string `yaml:"allowed-prefixes" json:"allowed-prefixes"`

	// DisableSanitize forwards JSON bodies without HTML-escaping string values.
	DisableSanitize bool `yaml:"disable-sanitize" json:"disable-sanitize"`
}

// SessionConfig selects where gateway sessions keep their tokens.
type SessionConfig struct {
	// Store is "cookie" (default) or "postgres".
	Store          string `yaml:"store" json:"store"`
	PostgresDSN    string `yaml:"postgres-dsn" json:"-"`
	PostgresSchema string `yaml:"postgres-schema" json:"postgres-schema"`
	PostgresTable  string `yaml:"postgres-table" json:"postgres-table"`
	CookieDomain   string `yaml:"cookie-domain" json:"cookie-domain"`
}

// LoadConfig reads the YAML file at path. A missing file is an error.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOptional(path, false)
}

// LoadConfigOptional reads the YAML file at path. When optional is true a missing
// file or empty path yields the defaults. Environment overrides are applied after
// the file and defaults last.
func LoadConfigOptional(path string, optional bool) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case optional && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !optional {
		return nil, fmt.Errorf("config path is empty")
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.sanitize()
	return cfg, nil
}

// ApplyEnv overrides fields from the environment variables the front-end used.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get("API_BASE_URL"); ok {
		c.Upstream.BaseURL = v
	}
	if v, ok := get("NEXT_PUBLIC_API_BASE_URL"); ok {
		c.Client.BaseURL = v
	}
	if v, ok := get("NEXT_PUBLIC_MIN_LOADING_TIME"); ok {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Client.MinLoadingTimeMS = ms
		}
	}
	if v, ok := get("NEXT_PUBLIC_AUTH_CLIENT_ID"); ok {
		c.Auth.ClientID = v
	}
	if v, ok := get("NEXT_PUBLIC_AUTH_CLIENT_SECRET"); ok {
		c.Auth.ClientSecret = v
	}
	for _, key := range []string{"NODE_ENV", "APP_ENV"} {
		if v, ok := get(key); ok && strings.EqualFold(v, "production") {
			c.Production = true
		}
	}
	if v, ok := get("PGSTORE_DSN"); ok {
		c.Session.Store = "postgres"
		c.Session.PostgresDSN = v
	}
	if v, ok := get("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

func (c *Config) sanitize() {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upstream.BaseURL), "/")
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = DefaultRequestTimeout
	}
	c.Auth.TokenPath = strings.Trim(strings.TrimSpace(c.Auth.TokenPath), "/")
	if c.Auth.TokenPath == "" {
		c.Auth.TokenPath = DefaultTokenPath
	}
	if c.Auth.ClientID == "" {
		c.Auth.ClientID = DefaultClientID
	}
	if c.Auth.ClientSecret == "" {
		c.Auth.ClientSecret = DefaultClientSecret
	}
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = DefaultRateLimitRequests
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = DefaultRateLimitWindowSec
	}
	c.Proxy.AllowedPrefixes = normalizePrefixes(c.Proxy.AllowedPrefixes)
	if len(c.Proxy.AllowedPrefixes) == 0 {
		c.Proxy.AllowedPrefixes = append([]string(nil), DefaultAllowedPrefixes...)
	}
	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))
	if c.Session.Store != "postgres" {
		c.Session.Store = "cookie"
	}
	if c.Session.PostgresTable == "" {
		c.Session.PostgresTable = DefaultSessionTable
	}
	c.Client.BaseURL = strings.TrimRight(strings.TrimSpace(c.Client.BaseURL), "/")
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = DefaultClientBaseURL
	}
	if c.Client.MinLoadingTimeMS <= 0 {
		c.Client.MinLoadingTimeMS = DefaultMinLoadingTimeMS
	}
	if c.Client.RequestTimeoutSeconds <= 0 {
		c.Client.RequestTimeoutSeconds = DefaultRequestTimeout
	}
}

func normalizePrefixes(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.Trim(strings.TrimSpace(p), "/"))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// TokenURL is the absolute upstream token endpoint.
func (c *Config) TokenURL() string {
	return c.Upstream.BaseURL + "/" + c.Auth.TokenPath
}

// Addr is the listen address of the gateway.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
