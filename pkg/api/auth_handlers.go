package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/httputil"
	"github.com/platinummonkey/homegate/pkg/middleware"
	"github.com/platinummonkey/homegate/pkg/observability"
	"github.com/platinummonkey/homegate/pkg/sso"
)

const providerUnavailableMessage = "authentication provider unavailable, please try again later"

// listProviders handles GET /auth/providers
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.cfg.Providers.List()
	headerSchemes := s.cfg.Resolver.HeaderProvidersPresent(r)

	preferred := MethodOAuth
	if len(headerSchemes) > 0 {
		preferred = MethodHeader
	}

	httputil.WriteSuccess(w, ProvidersResponse{
		Providers:       append(providers, headerSchemes...),
		PreferredMethod: preferred,
	})
}

// login handles GET /auth/login/{provider}
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}

	provider, err := s.cfg.Providers.Lookup(name)
	if err != nil {
		s.cfg.Audit.LogFromRequest(r, auth.AuditEvent{
			Action: auth.ActionLogin, Provider: name, Status: auth.StatusFailure, Err: err,
		})
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	state, err := s.cfg.States.Issue(r.Context(), name)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to issue oauth state")
		httputil.WriteInternalError(w)
		return
	}

	s.cfg.Audit.LogFromRequest(r, auth.AuditEvent{
		Action: auth.ActionLogin, Provider: name, Status: auth.StatusSuccess,
	})
	httputil.WriteSuccess(w, AuthURLResponse{
		AuthURL: provider.AuthorizationURL(s.redirectURI(name), state),
		State:   state,
	})
}

// callback handles GET /auth/callback/{provider}
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}
	ctx := r.Context()
	logger := observability.FromContext(ctx).WithField("provider", name)

	fail := func(err error) {
		s.cfg.Metrics.RecordLogin(name, auth.StatusFailure)
		s.cfg.Audit.LogFromRequest(r, auth.AuditEvent{
			Action: auth.ActionCallback, Provider: name, Method: auth.AuthMethodOAuth,
			Status: auth.StatusFailure, Err: err,
		})
	}

	provider, err := s.cfg.Providers.Lookup(name)
	if err != nil {
		fail(err)
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	query := r.URL.Query()
	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		fail(errors.New("missing code or state"))
		httputil.WriteBadRequest(w, "code and state are required")
		return
	}

	if err := s.cfg.States.Consume(ctx, state, name); err != nil {
		fail(err)
		if errors.Is(err, sso.ErrInvalidState) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		logger.WithError(err).Error("failed to consume oauth state")
		httputil.WriteInternalError(w)
		return
	}

	token, err := provider.ExchangeCode(ctx, code, s.redirectURI(name))
	if err != nil {
		fail(err)
		s.writeProviderError(w, r, err)
		return
	}

	identity, err := provider.FetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		fail(err)
		s.writeProviderError(w, r, err)
		return
	}

	user, err := s.cfg.Users.Upsert(ctx, identity, s.cfg.RolePolicy)
	if err != nil {
		s.cfg.Metrics.RecordUpsert(name, "error")
		fail(err)
		logger.WithError(err).Error("failed to upsert user")
		httputil.WriteInternalError(w)
		return
	}
	s.cfg.Metrics.RecordUpsert(name, "success")

	session, principal, err := s.cfg.Resolver.IssueSession(user, auth.AuthMethodOAuth)
	if err != nil {
		fail(err)
		logger.WithError(err).Error("failed to issue session token")
		httputil.WriteInternalError(w)
		return
	}

	middleware.SetSessionCookie(w, session, s.cfg.SecureCookies)
	s.cfg.Metrics.RecordLogin(name, auth.StatusSuccess)
	s.cfg.Audit.LogFromRequest(r, auth.AuditEvent{
		Action: auth.ActionCallback, Provider: name, Email: principal.Email,
		Method: auth.AuthMethodOAuth, Status: auth.StatusSuccess,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// headerLogin handles GET /auth/header-login. The session cookie has
// already been set by the auth middleware when header auth succeeded.
func (s *Server) headerLogin(w http.ResponseWriter, r *http.Request) {
	if p := middleware.GetPrincipal(r); p != nil && p.AuthMethod == auth.AuthMethodHeader {
		s.cfg.Audit.LogFromRequest(r, auth.AuditEvent{
			Action: auth.ActionHeaderLogin, Email: p.Email, Method: p.AuthMethod, Status: auth.StatusSuccess,
		})
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// me handles GET /auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r)
	resp := MeResponse{Principal: p}

	if p.AuthMethod != auth.AuthMethodAPIKey {
		user, err := s.cfg.Users.Get(r.Context(), p.ID)
		if err == nil {
			resp.User = user
		} else {
			observability.FromContext(r.Context()).WithError(err).Debug("no directory record for principal")
		}
	}
	httputil.WriteSuccess(w, resp)
}

// logout handles POST /auth/logout. Tokens are not revoked; the cookie is
// cleared and the token stays valid until it expires.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ev := auth.AuditEvent{Action: auth.ActionLogout, Status: auth.StatusSuccess}
	if p := middleware.GetPrincipal(r); p != nil {
		ev.Email = p.Email
		ev.Method = p.AuthMethod
	}
	s.cfg.Audit.LogFromRequest(r, ev)

	middleware.ClearSessionCookie(w, s.cfg.SecureCookies)
	httputil.WriteNoContent(w)
}

func (s *Server) redirectURI(provider string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/auth/callback/" + provider
}

func (s *Server) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.FromContext(r.Context()).WithError(err)
	var perr *sso.ProviderError
	if errors.As(err, &perr) {
		logger.WithFields(map[string]interface{}{
			"provider":        perr.Provider,
			"operation":       perr.Op,
			"upstream_status": perr.Status,
			"upstream_body":   truncate(perr.Body, 512),
		}).Warn("identity provider request failed")
	} else {
		logger.Warn("identity provider request failed")
	}
	httputil.WriteBadGateway(w, providerUnavailableMessage)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
