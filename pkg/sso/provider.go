package sso

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds every outbound provider request
const DefaultHTTPTimeout = 10 * time.Second

// Provider is an external OAuth2 identity provider
type Provider interface {
	// Name returns the registry name of the provider
	Name() string

	// AuthorizationURL builds the URL the browser is sent to. It performs no I/O.
	AuthorizationURL(redirectURI, state string) string

	// ExchangeCode trades an authorization code for an access token. A code is
	// single use, so this call is never retried.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)

	// FetchUserInfo loads and normalizes the profile behind accessToken
	FetchUserInfo(ctx context.Context, accessToken string) (*auth.NormalizedIdentity, error)
}

// ClientOptions carries the shared outbound settings for every provider
type ClientOptions struct {
	// HTTPClient is used for every provider call; NewHTTPClient(DefaultHTTPTimeout) when nil
	HTTPClient *http.Client
	Retry      RetryPolicy
	Metrics    *observability.Metrics
}

// NewHTTPClient returns a client with a bounded timeout whose transport
// records otel spans
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.HTTPClient == nil {
		o.HTTPClient = NewHTTPClient(DefaultHTTPTimeout)
	}
	if o.Retry.MaxTries == 0 {
		o.Retry = DefaultRetryPolicy()
	}
	return o
}

// NewProvider creates a provider from configuration. OIDC providers perform
// discovery against their issuer, so ctx bounds that request.
func NewProvider(ctx context.Context, name string, cfg OAuthProviderConfig, opts ClientOptions) (Provider, error) {
	cfg = cfg.WithDefaults(name)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}
	opts = opts.withDefaults()

	switch cfg.Kind {
	case KindGitHub:
		return NewOAuth2Provider(name, cfg, mapGitHubProfile, opts), nil
	case KindGoogle:
		return NewOAuth2Provider(name, cfg, mapGoogleProfile, opts), nil
	case KindMicrosoft:
		return NewOAuth2Provider(name, cfg, mapMicrosoftProfile, opts), nil
	case KindOIDC:
		return NewOIDCProvider(ctx, name, cfg, opts)
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", cfg.Kind)
	}
}

// Registry maps provider names to providers. It is populated during startup
// and only read afterwards, so lookups take no lock.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// BuildRegistry creates and registers a provider for every configured name
func BuildRegistry(ctx context.Context, configs map[string]OAuthProviderConfig, opts ClientOptions) (*Registry, error) {
	registry := NewRegistry()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		provider, err := NewProvider(ctx, name, configs[name], opts)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(name, provider); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds a provider. It must only be called during startup.
func (r *Registry) Register(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Lookup is Get returning *UnknownProviderError for an unconfigured name
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &UnknownProviderError{Name: name}
	}
	return p, nil
}

// List returns the registered names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
