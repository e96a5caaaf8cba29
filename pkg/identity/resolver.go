// Package identity turns an inbound request into the principal behind it.
//
// Resolution tries, in order, and stops at the first success:
//
//  1. the access_token session cookie
//  2. each enabled header auth scheme, in configured order, when the
//     connecting peer is a trusted proxy
//  3. an API key presented as "Authorization: Bearer <key>"
//
// When none applies the request is anonymous, which is not an error. Only
// infrastructure failures (directory or key store unavailable, signing
// failure) are returned as errors; malformed input always falls through to
// the next method.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/directory"
	"github.com/platinummonkey/homegate/pkg/headerauth"
	"github.com/platinummonkey/homegate/pkg/httputil"
	"github.com/platinummonkey/homegate/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// CookieName holds the session token
	CookieName = "access_token"

	// DefaultTokenTTL is the session token lifetime
	DefaultTokenTTL = 7 * 24 * time.Hour
	// CookieMaxAge is the fixed lifetime of the session cookie. A cookie
	// holding an expired token is ignored and resolution falls through.
	CookieMaxAge = 7 * 24 * time.Hour

	// MethodAnonymous labels resolutions that found no principal
	MethodAnonymous = "anonymous"
)

// Config wires a Resolver
type Config struct {
	Tokens          *auth.TokenService
	Directory       directory.Directory
	RolePolicy      *directory.RolePolicy
	HeaderProviders []headerauth.Provider
	// APIKeys is optional; without it bearer credentials are ignored
	APIKeys  auth.APIKeyStore
	TokenTTL time.Duration
	Metrics  *observability.Metrics
}

// Resolver runs the per-request fallback chain. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	tokens    *auth.TokenService
	directory directory.Directory
	policy    *directory.RolePolicy
	headers   []headerauth.Provider
	apiKeys   auth.APIKeyStore
	tokenTTL  time.Duration
	metrics   *observability.Metrics
}

// Resolution is the outcome of Resolve. Principal is nil for anonymous
// requests. IssuedToken is set when header auth minted a new session token
// that the caller should store in the cookie.
type Resolution struct {
	Principal   *auth.Principal
	IssuedToken string
}

// NewResolver validates cfg and creates a resolver
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("token service is required")
	}
	if len(cfg.HeaderProviders) > 0 && cfg.Directory == nil {
		return nil, errors.New("header auth requires a user directory")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &Resolver{
		tokens:    cfg.Tokens,
		directory: cfg.Directory,
		policy:    cfg.RolePolicy,
		headers:   cfg.HeaderProviders,
		apiKeys:   cfg.APIKeys,
		tokenTTL:  cfg.TokenTTL,
		metrics:   cfg.Metrics,
	}, nil
}

// TokenTTL returns the lifetime of tokens this resolver issues
func (r *Resolver) TokenTTL() time.Duration {
	return r.tokenTTL
}

// Resolve runs the fallback chain for req
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Resolution, error) {
	ctx, span := observability.Tracer().Start(ctx, "identity.Resolve")
	defer span.End()

	res, err := r.resolve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity resolution failed")
		return nil, err
	}

	method := MethodAnonymous
	if res.Principal != nil {
		method = string(res.Principal.AuthMethod)
	}
	span.SetAttributes(attribute.String("auth.method", method))
	r.metrics.RecordResolution(method)
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, req *http.Request) (*Resolution, error) {
	if p := r.fromCookie(req); p != nil {
		return &Resolution{Principal: p}, nil
	}

	res, err := r.fromHeaders(ctx, req)
	if err != nil || res != nil {
		return res, err
	}

	p, err := r.fromAPIKey(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Resolution{Principal: p}, nil
}

func (r *Resolver) fromCookie(req *http.Request) *auth.Principal {
	cookie, err := req.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, ok := r.tokens.Validate(cookie.Value)
	if !ok {
		return nil
	}
	return claims.Principal(auth.AuthMethodOAuth)
}

func (r *Resolver) fromHeaders(ctx context.Context, req *http.Request) (*Resolution, error) {
	if len(r.headers) == 0 {
		return nil, nil
	}

	clientIP := httputil.ClientIP(req)
	for _, provider := range r.headers {
		if !provider.ValidateSource(clientIP) {
			if provider.Present(req.Header) {
				observability.FromContext(ctx).
					WithField("scheme", provider.Name()).
					WithField("client_ip", clientIP).
					Warn("ignoring identity header from untrusted source")
			}
			continue
		}

		identity := provider.ExtractIdentity(req.Header)
		if identity == nil {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		user, err := r.directory.Upsert(ctx, identity, r.policy)
		if err != nil {
			r.metrics.RecordUpsert(identity.Provider, "error")
			return nil, fmt.Errorf("header auth %s: %w", provider.Name(), err)
		}
		r.metrics.RecordUpsert(identity.Provider, "success")

		token, principal, err := r.IssueSession(user, auth.AuthMethodHeader)
		if err != nil {
			return nil, err
		}
		return &Resolution{Principal: principal, IssuedToken: token}, nil
	}
	return nil, nil
}

func (r *Resolver) fromAPIKey(ctx context.Context, req *http.Request) (*auth.Principal, error) {
	if r.apiKeys == nil {
		return nil, nil
	}
	key := httputil.BearerToken(req)
	if key == "" {
		return nil, nil
	}

	record, err := r.apiKeys.LookupAPIKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("api key lookup: %w", err)
	}
	if record == nil || !record.Active {
		observability.FromContext(ctx).
			WithField("api_key", auth.RedactAPIKey(key)).
			Debug("bearer credential is not an active api key")
		return nil, nil
	}
	return record.Principal(), nil
}

// IssueSession signs a session token for user and returns it with the
// matching principal
func (r *Resolver) IssueSession(user *directory.User, method auth.AuthMethod) (string, *auth.Principal, error) {
	token, err := r.tokens.Issue(user.Claims(), r.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue session token: %w", err)
	}
	claims, ok := r.tokens.Validate(token)
	if !ok {
		return "", nil, errors.New("issued session token failed validation")
	}
	return token, claims.Principal(method), nil
}

// HeaderProvidersPresent returns the enabled header schemes whose identity
// header is on req, in configured order
func (r *Resolver) HeaderProvidersPresent(req *http.Request) []string {
	var names []string
	for _, provider := range r.headers {
		if provider.Present(req.Header) {
			names = append(names, provider.Name())
		}
	}
	return names
}
