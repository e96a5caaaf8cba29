// Package sso implements federated login against external OAuth2 identity
// providers.
//
// # Providers
//
// Each configured provider is built once at startup and registered by name:
//
//	registry, err := sso.BuildRegistry(ctx, map[string]sso.OAuthProviderConfig{
//		"github": {ClientID: id, ClientSecret: secret},
//		"corp":   {Kind: sso.KindOIDC, IssuerURL: "https://id.example.com", ClientID: id, ClientSecret: secret},
//	}, sso.ClientOptions{Metrics: metrics})
//
// github, google and microsoft fill their endpoints from GetPresetConfig; the
// oidc kind discovers them from the issuer. Profiles are normalized into
// auth.NormalizedIdentity: a missing email becomes "{provider}@local" and a
// missing name falls back to the email's local part, then "User".
//
// # Login flow
//
//	state, _ := states.Issue(ctx, "github")
//	url := provider.AuthorizationURL(redirectURI, state)
//	// ... browser returns with code and state ...
//	if err := states.Consume(ctx, state, "github"); err != nil { /* ErrInvalidState */ }
//	token, err := provider.ExchangeCode(ctx, code, redirectURI)
//	identity, err := provider.FetchUserInfo(ctx, token.AccessToken)
//
// The code exchange is at-most-once and never retried. The userinfo GET is
// retried with exponential backoff on transport errors and 5xx responses.
// Upstream failures surface as *ProviderError carrying the HTTP status.
//
// # State stores
//
// MemoryStateStore (expiring LRU) serves a single replica; RedisStateStore
// shares state across replicas and redeems with GETDEL.
package sso
