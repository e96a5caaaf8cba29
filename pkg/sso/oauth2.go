package sso

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/observability"
	"golang.org/x/oauth2"
)

// maxBodyBytes caps how much of a provider response is read
const maxBodyBytes = 1 << 20

// RetryPolicy bounds the userinfo retries. Code exchange is never retried.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy allows three attempts starting 200ms apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// profileMapper turns a decoded userinfo payload into an identity. It
// returns an error when the payload carries no stable subject.
type profileMapper func(provider string, payload map[string]interface{}) (*auth.NormalizedIdentity, error)

// OAuth2Provider implements Provider for a plain OAuth2 authorization-code
// flow followed by a userinfo GET
type OAuth2Provider struct {
	name         string
	oauth2Config oauth2.Config
	userInfoURL  string
	mapProfile   profileMapper
	client       *http.Client
	retry        RetryPolicy
	metrics      *observability.Metrics
}

// NewOAuth2Provider creates a provider from a validated configuration
func NewOAuth2Provider(name string, cfg OAuthProviderConfig, mapProfile profileMapper, opts ClientOptions) *OAuth2Provider {
	opts = opts.withDefaults()
	return &OAuth2Provider{
		name: name,
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeURL,
				TokenURL: cfg.TokenURL,
				// Auto-detection resends the code after a failed attempt,
				// which would exchange it twice.
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: cfg.Scopes(),
		},
		userInfoURL: cfg.UserInfoURL,
		mapProfile:  mapProfile,
		client:      opts.HTTPClient,
		retry:       opts.Retry,
		metrics:     opts.Metrics,
	}
}

// Name returns the registry name of the provider
func (p *OAuth2Provider) Name() string {
	return p.name
}

// AuthorizationURL builds the authorization redirect with response_type=code
func (p *OAuth2Provider) AuthorizationURL(redirectURI, state string) string {
	cfg := p.oauth2Config
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state)
}

// ExchangeCode posts the code to the token endpoint exactly once
func (p *OAuth2Provider) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	cfg := p.oauth2Config
	cfg.RedirectURL = redirectURI

	capture := &responseCapture{}
	client := *p.client
	capture.base = client.Transport
	client.Transport = capture

	start := time.Now()
	token, err := cfg.Exchange(context.WithValue(ctx, oauth2.HTTPClient, &client), code)
	if err != nil {
		perr := p.tokenError(err, capture)
		p.metrics.RecordProviderRequest(p.name, OpToken, statusLabel(perr.Status), time.Since(start))
		return nil, perr
	}
	p.metrics.RecordProviderRequest(p.name, OpToken, "200", time.Since(start))
	return token, nil
}

func (p *OAuth2Provider) tokenError(err error, capture *responseCapture) *ProviderError {
	perr := &ProviderError{Provider: p.name, Op: OpToken, Err: err}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			perr.Status = retrieveErr.Response.StatusCode
		}
		perr.Body = string(retrieveErr.Body)
		return perr
	}
	// A 2xx with an unusable body surfaces from x/oauth2 as a plain error.
	perr.Status, perr.Body = capture.status, string(capture.body)
	return perr
}

// responseCapture records the status and body of the last response it
// carried so token endpoint failures can be reported verbatim
type responseCapture struct {
	base   http.RoundTripper
	status int
	body   []byte
}

func (c *responseCapture) RoundTrip(req *http.Request) (*http.Response, error) {
	base := c.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	c.status = resp.StatusCode
	c.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// FetchUserInfo GETs the userinfo endpoint, retrying transport failures and
// 5xx responses with exponential backoff
func (p *OAuth2Provider) FetchUserInfo(ctx context.Context, accessToken string) (*auth.NormalizedIdentity, error) {
	return fetchProfile(ctx, p.client, p.retry, p.metrics, p.name, p.userInfoURL, accessToken, p.mapProfile)
}

func fetchProfile(
	ctx context.Context,
	client *http.Client,
	retry RetryPolicy,
	metrics *observability.Metrics,
	provider, userInfoURL, accessToken string,
	mapProfile profileMapper,
) (*auth.NormalizedIdentity, error) {
	operation := func() (*auth.NormalizedIdentity, error) {
		start := time.Now()
		identity, status, err := getProfile(ctx, client, provider, userInfoURL, accessToken, mapProfile)
		metrics.RecordProviderRequest(provider, OpUserInfo, statusLabel(status), time.Since(start))
		if err == nil {
			return identity, nil
		}
		if ctx.Err() != nil || (status != 0 && status < http.StatusInternalServerError) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	identity, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(retry.backOff()),
		backoff.WithMaxTries(retry.MaxTries),
	)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, &ProviderError{Provider: provider, Op: OpUserInfo, Err: err}
	}
	return identity, nil
}

// getProfile performs a single userinfo request. The returned status is 0
// when no response was received.
func getProfile(
	ctx context.Context,
	client *http.Client,
	provider, userInfoURL, accessToken string,
	mapProfile profileMapper,
) (*auth.NormalizedIdentity, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, 0, &ProviderError{Provider: provider, Op: OpUserInfo, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &ProviderError{Provider: provider, Op: OpUserInfo, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, &ProviderError{Provider: provider, Op: OpUserInfo, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &ProviderError{
			Provider: provider,
			Op:       OpUserInfo,
			Status:   resp.StatusCode,
			Body:     string(body),
		}
	}

	var payload map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, resp.StatusCode, &ProviderError{
			Provider: provider,
			Op:       OpUserInfo,
			Status:   resp.StatusCode,
			Body:     string(body),
			Err:      fmt.Errorf("decode profile: %w", err),
		}
	}

	identity, err := mapProfile(provider, payload)
	if err != nil {
		return nil, resp.StatusCode, &ProviderError{
			Provider: provider,
			Op:       OpUserInfo,
			Status:   resp.StatusCode,
			Err:      err,
		}
	}
	identity.ApplyDefaults()
	return identity, resp.StatusCode, nil
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
