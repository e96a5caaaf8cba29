package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/directory"
	"github.com/platinummonkey/homegate/pkg/headerauth"
	"github.com/platinummonkey/homegate/pkg/identity"
	"github.com/platinummonkey/homegate/pkg/observability"
	"github.com/platinummonkey/homegate/pkg/sso"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	trustedProxy = "10.0.0.5"
	frontendURL  = "https://home.example.com"
)

// stubProvider is an sso.Provider with canned responses
type stubProvider struct {
	name        string
	identity    *auth.NormalizedIdentity
	exchangeErr error
	userInfoErr error

	exchangedCode string
	redirectURI   string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthorizationURL(redirectURI, state string) string {
	return "https://idp.test/authorize?" + url.Values{
		"redirect_uri": {redirectURI},
		"state":        {state},
	}.Encode()
}

func (p *stubProvider) ExchangeCode(_ context.Context, code, redirectURI string) (*oauth2.Token, error) {
	p.exchangedCode = code
	p.redirectURI = redirectURI
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "upstream-" + code}, nil
}

func (p *stubProvider) FetchUserInfo(_ context.Context, accessToken string) (*auth.NormalizedIdentity, error) {
	if p.userInfoErr != nil {
		return nil, p.userInfoErr
	}
	id := *p.identity
	return &id, nil
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	tokens   *auth.TokenService
	users    *directory.SQLDirectory
	keys     *auth.SQLAPIKeyStore
	states   *sso.MemoryStateStore
	github   *stubProvider
	metrics  *observability.Metrics
	logs     *bytes.Buffer
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithTTL(t, 0)
}

// newTestEnvWithTTL builds an env whose session tokens live for tokenTTL;
// zero keeps the resolver default
func newTestEnvWithTTL(t *testing.T, tokenTTL time.Duration) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	users := directory.NewSQLDirectory(db)
	require.NoError(t, users.Migrate(ctx))
	keys := auth.NewSQLAPIKeyStore(db)
	require.NoError(t, keys.Migrate(ctx))

	tokens, err := auth.NewTokenService([]byte(testSecret), "")
	require.NoError(t, err)

	allowlist, err := headerauth.NewAllowlist([]string{trustedProxy})
	require.NoError(t, err)
	headers, err := headerauth.NewProviders([]string{headerauth.SchemeDatabricks}, allowlist)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	policy := directory.NewRolePolicy([]string{"boss@corp.com"})

	resolver, err := identity.NewResolver(identity.Config{
		Tokens:          tokens,
		Directory:       users,
		RolePolicy:      policy,
		HeaderProviders: headers,
		APIKeys:         keys,
		TokenTTL:        tokenTTL,
		Metrics:         metrics,
	})
	require.NoError(t, err)

	github := &stubProvider{
		name: "github",
		identity: &auth.NormalizedIdentity{
			Provider: "github", ProviderID: "42", Email: "ana@corp.com", DisplayName: "Ana",
		},
	}
	providers := sso.NewRegistry()
	require.NoError(t, providers.Register("github", github))

	states := sso.NewMemoryStateStore(0, time.Minute)
	logs := &bytes.Buffer{}
	logger := observability.NewLogger(observability.InfoLevel, logs)

	server, err := NewServer(Config{
		Providers:   providers,
		States:      states,
		Resolver:    resolver,
		Users:       users,
		RolePolicy:  policy,
		APIKeys:     keys,
		FrontendURL: frontendURL + "/",
		Logger:      logger,
		Metrics:     metrics,
		Registry:    registry,
		Health:      observability.NewHealthChecker(db, nil, "test"),
	})
	require.NoError(t, err)

	return &testEnv{
		server:   server,
		handler:  server.Handler(),
		tokens:   tokens,
		users:    users,
		keys:     keys,
		states:   states,
		github:   github,
		metrics:  metrics,
		logs:     logs,
		registry: registry,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// sessionFor signs a session cookie value for an existing directory user
func (e *testEnv) sessionFor(t *testing.T, user *directory.User) *http.Cookie {
	t.Helper()
	token, err := e.tokens.Issue(user.Claims(), time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: identity.CookieName, Value: token}
}

func (e *testEnv) createUser(t *testing.T, providerID, email string) *directory.User {
	t.Helper()
	user, err := e.users.Upsert(context.Background(), &auth.NormalizedIdentity{
		Provider: "github", ProviderID: providerID, Email: email,
	}, directory.NewRolePolicy([]string{"boss@corp.com"}))
	require.NoError(t, err)
	return user
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.CookieName {
			return c
		}
	}
	return nil
}
