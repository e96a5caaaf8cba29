// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteUnauthorized(w, "authentication required")
//	httputil.WriteForbidden(w, "admin role required")
//	httputil.WriteBadGateway(w, "login failed, please try again later")
//
// # Request Helpers
//
// ClientIP returns the connecting peer's address taken from RemoteAddr. It
// deliberately ignores X-Forwarded-For: the trusted-proxy allowlist must be
// checked against the socket peer, not against a header the client controls.
//
//	ip := httputil.ClientIP(r)
//	token := httputil.BearerToken(r) // "" unless "Authorization: Bearer ..."
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware,
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//	)(router)
package httputil
