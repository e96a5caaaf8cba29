package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/contextkeys"
	"github.com/platinummonkey/homegate/pkg/httputil"
	"github.com/platinummonkey/homegate/pkg/identity"
	"github.com/platinummonkey/homegate/pkg/observability"
)

// Resolver finds the principal behind a request
type Resolver interface {
	Resolve(ctx context.Context, req *http.Request) (*identity.Resolution, error)
}

// AuthMiddleware resolves the caller of every request and stores the
// principal in the request context. Anonymous requests pass through with no
// principal; use RequireAuthenticated or RequireRole to reject them.
type AuthMiddleware struct {
	resolver Resolver
	secure   bool
}

// NewAuthMiddleware creates a new authentication middleware. secure marks
// session cookies issued by header auth as HTTPS only.
func NewAuthMiddleware(resolver Resolver, secure bool) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		secure:   secure,
	}
}

// Handler wraps an HTTP handler with identity resolution
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := m.resolver.Resolve(r.Context(), r)
		if err != nil {
			observability.FromContext(r.Context()).
				WithError(err).
				Error("identity resolution failed")
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "authentication backend unavailable")
			return
		}

		if res.IssuedToken != "" {
			SetSessionCookie(w, res.IssuedToken, m.secure)
		}
		if res.Principal == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), res.Principal)
		ctx = contextkeys.WithUserID(ctx, res.Principal.ID)
		logger := observability.FromContext(ctx).WithField("user_id", res.Principal.ID)
		ctx = observability.WithLogger(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie stores token in the access_token cookie. The cookie's
// max-age is fixed and independent of the token lifetime.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(identity.CookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the access_token cookie
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetPrincipal extracts the principal from the request context
func GetPrincipal(r *http.Request) *auth.Principal {
	return PrincipalFromContext(r.Context())
}

// PrincipalFromContext extracts the principal from ctx
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
	if !ok {
		return nil
	}
	return p
}

// RequireAuthenticated rejects anonymous requests with 401
func RequireAuthenticated(audit *auth.AuditLogger) func(http.Handler) http.Handler {
	return guard(audit, auth.RequireAuthenticated)
}

// RequireRole rejects anonymous requests with 401 and principals holding a
// different role with 403
func RequireRole(role auth.Role, audit *auth.AuditLogger) func(http.Handler) http.Handler {
	return guard(audit, func(p *auth.Principal) (*auth.Principal, error) {
		return auth.RequireRole(p, role)
	})
}

func guard(audit *auth.AuditLogger, check func(*auth.Principal) (*auth.Principal, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r)
			if _, err := check(p); err != nil {
				denied(w, r, p, err, audit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func denied(w http.ResponseWriter, r *http.Request, p *auth.Principal, err error, audit *auth.AuditLogger) {
	if errors.Is(err, auth.ErrUnauthenticated) {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	ev := auth.AuditEvent{Action: auth.ActionAccessDenied, Status: auth.StatusDenied, Err: err}
	if p != nil {
		ev.Email = p.Email
		ev.Method = p.AuthMethod
	}
	audit.LogFromRequest(r, ev)
	httputil.WriteForbidden(w, "insufficient role permissions")
}
