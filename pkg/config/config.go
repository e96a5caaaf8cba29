package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/headerauth"
	"github.com/platinummonkey/homegate/pkg/observability"
	"github.com/platinummonkey/homegate/pkg/sso"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig                       `yaml:"server"`
	Auth          AuthConfig                         `yaml:"auth"`
	HeaderAuth    HeaderAuthConfig                   `yaml:"header_auth"`
	Providers     map[string]sso.OAuthProviderConfig `yaml:"providers"`
	Database      DatabaseConfig                     `yaml:"database"`
	Redis         RedisConfig                        `yaml:"redis"`
	Observability ObservabilityConfig                `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// FrontendURL is the public origin; OAuth redirect URIs are built from it
	FrontendURL   string `yaml:"frontend_url"`
	SecureCookies bool   `yaml:"secure_cookies"`

	// LoginRateLimit is the per-client login attempts allowed per minute; 0 disables it
	LoginRateLimit int `yaml:"login_rate_limit"`
}

// AuthConfig holds session and role settings
type AuthConfig struct {
	SecretKey   string        `yaml:"secret_key"`
	Issuer      string        `yaml:"issuer"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	StateTTL    time.Duration `yaml:"state_ttl"`
	AdminEmails []string      `yaml:"admin_emails"`

	// ProviderTimeout bounds every outbound identity provider call
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	// ProviderRetries is the attempt budget for retryable userinfo calls
	ProviderRetries int `yaml:"provider_retries"`
}

// HeaderAuthConfig controls trusted-proxy header authentication
type HeaderAuthConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schemes are tried in this order
	Schemes        []string `yaml:"schemes"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// EnabledSchemes returns the schemes to run, or nil when header auth is off
func (c HeaderAuthConfig) EnabledSchemes() []string {
	if !c.Enabled {
		return nil
	}
	return c.Schemes
}

// DatabaseConfig selects the user directory database
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3"
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig enables the shared state store and rate limiter when URL is set
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level parses LogLevel
func (c ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(c.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			FrontendURL:     "http://localhost:8080",
			LoginRateLimit:  30,
		},
		Auth: AuthConfig{
			Issuer:          auth.DefaultIssuer,
			TokenTTL:        7 * 24 * time.Hour,
			StateTTL:        sso.DefaultStateTTL,
			ProviderTimeout: sso.DefaultHTTPTimeout,
			ProviderRetries: int(sso.DefaultRetryPolicy().MaxTries),
		},
		HeaderAuth: HeaderAuthConfig{
			Schemes: []string{headerauth.SchemeDatabricks, headerauth.SchemeAzureAppService},
		},
		Providers: map[string]sso.OAuthProviderConfig{},
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			DSN:          "file:homegate.db?_busy_timeout=5000&_journal_mode=WAL",
			MaxOpenConns: 10,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "homegate",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by HOMEGATE_CONFIG_FILE if any, then HOMEGATE_* environment
// variables, and validates the result
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("HOMEGATE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("HOMEGATE_HOST", s.Host)
	s.Port = getEnv("HOMEGATE_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("HOMEGATE_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("HOMEGATE_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("HOMEGATE_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("HOMEGATE_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.FrontendURL = getEnv("HOMEGATE_FRONTEND_URL", s.FrontendURL)
	s.SecureCookies = getEnvBool("HOMEGATE_SECURE_COOKIES", s.SecureCookies)
	s.LoginRateLimit = getEnvInt("HOMEGATE_LOGIN_RATE_LIMIT", s.LoginRateLimit)

	a := &c.Auth
	a.SecretKey = getEnv("HOMEGATE_SECRET_KEY", a.SecretKey)
	a.Issuer = getEnv("HOMEGATE_TOKEN_ISSUER", a.Issuer)
	a.TokenTTL = getEnvDuration("HOMEGATE_TOKEN_TTL", a.TokenTTL)
	a.StateTTL = getEnvDuration("HOMEGATE_STATE_TTL", a.StateTTL)
	a.AdminEmails = getEnvList("HOMEGATE_ADMIN_EMAILS", a.AdminEmails)
	a.ProviderTimeout = getEnvDuration("HOMEGATE_PROVIDER_TIMEOUT", a.ProviderTimeout)
	a.ProviderRetries = getEnvInt("HOMEGATE_PROVIDER_RETRIES", a.ProviderRetries)

	h := &c.HeaderAuth
	h.Enabled = getEnvBool("HOMEGATE_HEADER_AUTH_ENABLED", h.Enabled)
	h.Schemes = getEnvList("HOMEGATE_HEADER_AUTH_SCHEMES", h.Schemes)
	h.TrustedProxies = getEnvList("HOMEGATE_TRUSTED_PROXIES", h.TrustedProxies)

	for _, kind := range []sso.ProviderKind{sso.KindGitHub, sso.KindGoogle, sso.KindMicrosoft, sso.KindOIDC} {
		prefix := "HOMEGATE_" + strings.ToUpper(string(kind)) + "_"
		id, secret := os.Getenv(prefix+"CLIENT_ID"), os.Getenv(prefix+"CLIENT_SECRET")
		if id == "" || secret == "" {
			continue
		}
		if c.Providers == nil {
			c.Providers = map[string]sso.OAuthProviderConfig{}
		}
		p := c.Providers[string(kind)]
		p.Kind = kind
		p.ClientID = id
		p.ClientSecret = secret
		p.IssuerURL = getEnv(prefix+"ISSUER_URL", p.IssuerURL)
		p.Scope = getEnv(prefix+"SCOPE", p.Scope)
		c.Providers[string(kind)] = p
	}

	d := &c.Database
	d.Driver = getEnv("HOMEGATE_DATABASE_DRIVER", d.Driver)
	d.DSN = getEnv("HOMEGATE_DATABASE_DSN", d.DSN)
	d.MaxOpenConns = getEnvInt("HOMEGATE_DATABASE_MAX_OPEN_CONNS", d.MaxOpenConns)

	c.Redis.URL = getEnv("HOMEGATE_REDIS_URL", c.Redis.URL)

	o := &c.Observability
	o.LogLevel = getEnv("HOMEGATE_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("HOMEGATE_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("HOMEGATE_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("HOMEGATE_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("HOMEGATE_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("HOMEGATE_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("HOMEGATE_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("HOMEGATE_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// normalize fills provider presets
func (c *Config) normalize() {
	for name, p := range c.Providers {
		c.Providers[name] = p.WithDefaults(name)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	u, err := url.Parse(c.Server.FrontendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("frontend URL must be absolute: %q", c.Server.FrontendURL)
	}
	if c.Server.LoginRateLimit < 0 {
		return errors.New("login rate limit must not be negative")
	}

	if len(c.Auth.SecretKey) < auth.MinSecretLength {
		return fmt.Errorf("secret key must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.Auth.StateTTL <= 0 {
		return errors.New("state TTL must be positive")
	}
	if c.Auth.ProviderTimeout <= 0 {
		return errors.New("provider timeout must be positive")
	}
	if c.Auth.ProviderRetries < 1 {
		return errors.New("provider retries must be at least 1")
	}

	if c.HeaderAuth.Enabled {
		if len(c.HeaderAuth.Schemes) == 0 {
			return errors.New("header auth is enabled but no schemes are listed")
		}
		if len(c.HeaderAuth.TrustedProxies) == 0 {
			return errors.New("header auth is enabled but no trusted proxies are listed")
		}
		if _, err := headerauth.NewAllowlist(c.HeaderAuth.TrustedProxies); err != nil {
			return err
		}
		if _, err := headerauth.NewProviders(c.HeaderAuth.Schemes, nil); err != nil {
			return err
		}
	}

	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database DSN is required")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Redacted flattens the configuration for startup logging with secrets masked
func (c *Config) Redacted() map[string]string {
	out := map[string]string{
		"server.addr":             c.Server.Host + ":" + c.Server.Port,
		"server.frontend_url":     c.Server.FrontendURL,
		"auth.secret_key":         mask(c.Auth.SecretKey),
		"auth.token_ttl":          c.Auth.TokenTTL.String(),
		"auth.admin_emails":       strings.Join(c.Auth.AdminEmails, ","),
		"header_auth.schemes":     strings.Join(c.HeaderAuth.EnabledSchemes(), ","),
		"header_auth.proxies":     strings.Join(c.HeaderAuth.TrustedProxies, ","),
		"database.driver":         c.Database.Driver,
		"database.dsn":            maskDSN(c.Database.DSN),
		"redis.url":               maskDSN(c.Redis.URL),
		"observability.log_level": c.Observability.LogLevel,
	}

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := c.Providers[name]
		out["providers."+name+".client_id"] = mask(p.ClientID)
		out["providers."+name+".client_secret"] = mask(p.ClientSecret)
	}
	return out
}

// mask keeps the first and last character of values longer than 3
func mask(s string) string {
	if len(s) <= 3 {
		return strings.Repeat("*", len(s))
	}
	return s[:1] + "********" + s[len(s)-1:]
}

// maskDSN hides the password of URL-shaped connection strings
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default.
// Entries are trimmed and empty entries dropped.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
