// Package middleware provides the HTTP middleware that attaches identity to
// requests and enforces access rules.
//
// AuthMiddleware runs the identity resolver on every request and stores the
// resulting principal in the request context:
//
//	authn := middleware.NewAuthMiddleware(resolver, cfg.Server.SecureCookies)
//	router.Use(authn.Handler)
//
// Handlers that need a caller wrap themselves in a guard:
//
//	admin.Use(middleware.RequireRole(auth.RoleAdmin, audit))
//
// RequireAuthenticated and RequireRole answer 401 for anonymous callers and
// RequireRole answers 403 when the role does not match.
//
// RateLimit throttles login attempts per peer address, backed either by a
// MemoryLimiter or by a RedisLimiter shared across instances.
package middleware
