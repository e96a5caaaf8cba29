package sso

import (
	"fmt"
	"strings"
)

// ProviderKind selects the profile mapping and endpoint presets
type ProviderKind string

const (
	KindGitHub    ProviderKind = "github"
	KindGoogle    ProviderKind = "google"
	KindMicrosoft ProviderKind = "microsoft"
	KindOIDC      ProviderKind = "oidc"
)

// OAuthProviderConfig holds one provider's client registration. It is
// loaded once at startup and never changed afterwards.
type OAuthProviderConfig struct {
	Kind         ProviderKind `yaml:"kind" json:"kind"`
	ClientID     string       `yaml:"client_id" json:"client_id"`
	ClientSecret string       `yaml:"client_secret" json:"-"`
	AuthorizeURL string       `yaml:"authorize_url" json:"authorize_url"`
	TokenURL     string       `yaml:"token_url" json:"token_url"`
	UserInfoURL  string       `yaml:"userinfo_url" json:"userinfo_url"`
	Scope        string       `yaml:"scope" json:"scope"`
	// IssuerURL enables discovery for the oidc kind
	IssuerURL string `yaml:"issuer_url" json:"issuer_url,omitempty"`
}

// Scopes splits the space separated scope string
func (c *OAuthProviderConfig) Scopes() []string {
	return strings.Fields(c.Scope)
}

// WithDefaults returns a copy of c with its kind inferred from name when unset
// and empty endpoints filled from the kind's preset
func (c OAuthProviderConfig) WithDefaults(name string) OAuthProviderConfig {
	if c.Kind == "" {
		c.Kind = ProviderKind(strings.ToLower(name))
	}
	preset, err := GetPresetConfig(c.Kind)
	if err != nil {
		return c
	}
	if c.AuthorizeURL == "" {
		c.AuthorizeURL = preset.AuthorizeURL
	}
	if c.TokenURL == "" {
		c.TokenURL = preset.TokenURL
	}
	if c.UserInfoURL == "" {
		c.UserInfoURL = preset.UserInfoURL
	}
	if c.Scope == "" {
		c.Scope = preset.Scope
	}
	return c
}

// Validate checks that the configuration can drive a login
func (c *OAuthProviderConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}

	switch c.Kind {
	case KindGitHub, KindGoogle, KindMicrosoft:
	case KindOIDC:
		if c.IssuerURL == "" {
			return fmt.Errorf("issuer_url is required for oidc providers")
		}
		return nil
	default:
		return fmt.Errorf("unsupported provider kind: %q", c.Kind)
	}

	if c.AuthorizeURL == "" {
		return fmt.Errorf("authorize_url is required")
	}
	if c.TokenURL == "" {
		return fmt.Errorf("token_url is required")
	}
	if c.UserInfoURL == "" {
		return fmt.Errorf("userinfo_url is required")
	}
	return nil
}

// GetPresetConfig returns the well-known endpoints for a built-in provider kind
func GetPresetConfig(kind ProviderKind) (*OAuthProviderConfig, error) {
	switch kind {
	case KindGitHub:
		return &OAuthProviderConfig{
			Kind:         KindGitHub,
			AuthorizeURL: "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			UserInfoURL:  "https://api.github.com/user",
			Scope:        "user:email",
		}, nil

	case KindGoogle:
		return &OAuthProviderConfig{
			Kind:         KindGoogle,
			AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     "https://oauth2.googleapis.com/token",
			UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
			Scope:        "openid email profile",
		}, nil

	case KindMicrosoft:
		return &OAuthProviderConfig{
			Kind:         KindMicrosoft,
			AuthorizeURL: "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			TokenURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/token",
			UserInfoURL:  "https://graph.microsoft.com/v1.0/me",
			Scope:        "openid email profile",
		}, nil

	default:
		return nil, fmt.Errorf("no preset configuration for provider kind: %s", kind)
	}
}
