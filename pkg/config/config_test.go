package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/homegate/pkg/observability"
	"github.com/platinummonkey/homegate/pkg/sso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("HG_TEST_STR", "custom")
	t.Setenv("HG_TEST_BOOL", "1")
	t.Setenv("HG_TEST_INT", "42")
	t.Setenv("HG_TEST_BAD_INT", "forty")
	t.Setenv("HG_TEST_DURATION", "90s")
	t.Setenv("HG_TEST_FLOAT", "0.25")
	t.Setenv("HG_TEST_LIST", " a@x.com, ,b@x.com ")

	assert.Equal(t, "custom", getEnv("HG_TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("HG_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("HG_TEST_BOOL", false))
	assert.True(t, getEnvBool("HG_TEST_UNSET", true))
	assert.Equal(t, 42, getEnvInt("HG_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("HG_TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("HG_TEST_DURATION", time.Second))
	assert.Equal(t, 0.25, getEnvFloat("HG_TEST_FLOAT", 1))
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, getEnvList("HG_TEST_LIST", nil))
	assert.Equal(t, []string{"d"}, getEnvList("HG_TEST_UNSET", []string{"d"}))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOMEGATE_SECRET_KEY", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, sso.DefaultStateTTL, cfg.Auth.StateTTL)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Empty(t, cfg.Providers)
	assert.Nil(t, cfg.HeaderAuth.EnabledSchemes())
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HOMEGATE_SECRET_KEY", testSecret)
	t.Setenv("HOMEGATE_FRONTEND_URL", "https://home.example.com")
	t.Setenv("HOMEGATE_ADMIN_EMAILS", "me@example.com")
	t.Setenv("HOMEGATE_GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("HOMEGATE_GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("HOMEGATE_GOOGLE_CLIENT_ID", "only-id")
	t.Setenv("HOMEGATE_HEADER_AUTH_ENABLED", "true")
	t.Setenv("HOMEGATE_HEADER_AUTH_SCHEMES", "azure_app_service,databricks")
	t.Setenv("HOMEGATE_TRUSTED_PROXIES", "10.0.0.5")
	t.Setenv("HOMEGATE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"me@example.com"}, cfg.Auth.AdminEmails)
	require.Contains(t, cfg.Providers, "github")
	assert.NotContains(t, cfg.Providers, "google", "a provider needs both id and secret")
	gh := cfg.Providers["github"]
	assert.Equal(t, sso.KindGitHub, gh.Kind)
	assert.Equal(t, "https://github.com/login/oauth/access_token", gh.TokenURL)
	assert.Equal(t, "user:email", gh.Scope)
	assert.Equal(t, []string{"azure_app_service", "databricks"}, cfg.HeaderAuth.EnabledSchemes())
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "homegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  frontend_url: https://home.example.com
auth:
  secret_key: `+testSecret+`
  token_ttl: 12h
providers:
  corp:
    kind: oidc
    client_id: corp-id
    client_secret: corp-secret
    issuer_url: https://sso.corp.example.com
database:
  driver: postgres
  dsn: postgres://homegate:hunter2@db/homegate
`), 0o600))
	t.Setenv("HOMEGATE_CONFIG_FILE", path)
	t.Setenv("HOMEGATE_PORT", "9100")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port, "environment wins over the file")
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	require.Contains(t, cfg.Providers, "corp")
	assert.Equal(t, sso.KindOIDC, cfg.Providers["corp"].Kind)
}

func TestLoadConfigFileErrors(t *testing.T) {
	t.Setenv("HOMEGATE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	t.Setenv("HOMEGATE_CONFIG_FILE", path)
	_, err = LoadConfig()
	assert.Error(t, err)
}

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.SecretKey = testSecret
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.SecretKey = "short" }, "secret key"},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "token TTL"},
		{"zero state ttl", func(c *Config) { c.Auth.StateTTL = 0 }, "state TTL"},
		{"relative frontend", func(c *Config) { c.Server.FrontendURL = "/app" }, "frontend URL"},
		{"header auth without proxies", func(c *Config) { c.HeaderAuth.Enabled = true }, "trusted proxies"},
		{"header auth bad proxy", func(c *Config) {
			c.HeaderAuth.Enabled = true
			c.HeaderAuth.TrustedProxies = []string{"not-an-ip"}
		}, "not-an-ip"},
		{"unknown scheme", func(c *Config) {
			c.HeaderAuth.Enabled = true
			c.HeaderAuth.TrustedProxies = []string{"10.0.0.5"}
			c.HeaderAuth.Schemes = []string{"cloudflare"}
		}, "cloudflare"},
		{"incomplete provider", func(c *Config) {
			c.Providers["github"] = sso.OAuthProviderConfig{Kind: sso.KindGitHub, ClientID: "id"}
		}, "provider github"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database driver"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.Providers["github"] = sso.OAuthProviderConfig{ClientID: "gh-client-id", ClientSecret: "gh-client-secret"}
	cfg.Database.DSN = "postgres://homegate:hunter2@db/homegate"

	out := cfg.Redacted()
	assert.Equal(t, "0********f", out["auth.secret_key"])
	assert.Equal(t, "g********t", out["providers.github.client_secret"])
	assert.NotContains(t, out["database.dsn"], "hunter2")
	assert.Contains(t, out["database.dsn"], "homegate:xxxxx@db")

	for _, v := range out {
		assert.NotContains(t, v, testSecret)
		assert.NotContains(t, v, "gh-client-secret")
	}
}
