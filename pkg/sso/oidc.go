package sso

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultOIDCScope is requested when an oidc provider configures no scope
const DefaultOIDCScope = "openid email profile"

// OIDCProvider is an OAuth2Provider whose endpoints come from OpenID
// discovery. ID tokens returned by the code exchange are verified.
type OIDCProvider struct {
	*OAuth2Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider discovers the issuer's endpoints. Explicitly configured
// endpoints take precedence over discovered ones.
func NewOIDCProvider(ctx context.Context, name string, cfg OAuthProviderConfig, opts ClientOptions) (*OIDCProvider, error) {
	opts = opts.withDefaults()

	start := time.Now()
	discovered, err := oidc.NewProvider(oidc.ClientContext(ctx, opts.HTTPClient), cfg.IssuerURL)
	if err != nil {
		opts.Metrics.RecordProviderRequest(name, OpDiscovery, "error", time.Since(start))
		return nil, &ProviderError{Provider: name, Op: OpDiscovery, Err: fmt.Errorf("failed to discover OIDC provider: %w", err)}
	}
	opts.Metrics.RecordProviderRequest(name, OpDiscovery, "200", time.Since(start))

	endpoint := discovered.Endpoint()
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = endpoint.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = endpoint.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = discovered.UserInfoEndpoint()
	}
	if cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("provider %s: issuer advertises no userinfo endpoint", name)
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultOIDCScope
	}

	return &OIDCProvider{
		OAuth2Provider: NewOAuth2Provider(name, cfg, mapOIDCProfile, opts),
		verifier:       discovered.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// ExchangeCode exchanges the code and verifies the ID token when one is
// returned
func (p *OIDCProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	token, err := p.OAuth2Provider.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return token, nil
	}
	if _, err := p.verifier.Verify(oidc.ClientContext(ctx, p.client), rawIDToken); err != nil {
		return nil, &ProviderError{Provider: p.name, Op: OpToken, Err: fmt.Errorf("invalid id_token: %w", err)}
	}
	return token, nil
}
