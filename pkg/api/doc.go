// Package api serves the authentication HTTP endpoints.
//
// # Routes
//
//	GET  /auth/providers            configured OAuth providers plus header schemes on the request
//	GET  /auth/login/{provider}     {auth_url, state} for the provider's consent page
//	GET  /auth/callback/{provider}  completes the code exchange, sets the session cookie, 302 to /
//	GET  /auth/header-login         302 to / once header auth has set the cookie
//	GET  /auth/me                   the current principal (401 when anonymous)
//	POST /auth/logout               clears the session cookie
//
// Admin routes under /admin require the admin role:
//
//	GET    /admin/users             directory listing
//	GET    /admin/users/summary     user and admin counts
//	PUT    /admin/users/{id}/role   change a user's role
//	POST   /admin/api-keys          issue an API key
//	POST   /admin/api-keys/deactivate  deactivate an API key
//
// Operational routes: /metrics, /health/live and /health/ready.
//
// Provider failures are answered with 502 and a generic message; upstream
// status and body are logged, never returned to the browser.
package api
