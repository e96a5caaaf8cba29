// Package config loads and validates homegate configuration.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file named by HOMEGATE_CONFIG_FILE, and HOMEGATE_*
// environment variables.
//
// Server:
//
//	HOMEGATE_HOST="0.0.0.0"
//	HOMEGATE_PORT="8080"
//	HOMEGATE_FRONTEND_URL="https://home.example.com"
//	HOMEGATE_SECURE_COOKIES="true"
//	HOMEGATE_LOGIN_RATE_LIMIT="30"   # per client per minute, 0 disables
//
// Sessions and roles:
//
//	HOMEGATE_SECRET_KEY="..."        # at least 32 bytes
//	HOMEGATE_TOKEN_TTL="168h"
//	HOMEGATE_STATE_TTL="10m"
//	HOMEGATE_ADMIN_EMAILS="me@example.com,partner@example.com"
//
// OAuth providers (set both id and secret to enable one):
//
//	HOMEGATE_GITHUB_CLIENT_ID / HOMEGATE_GITHUB_CLIENT_SECRET
//	HOMEGATE_GOOGLE_CLIENT_ID / HOMEGATE_GOOGLE_CLIENT_SECRET
//	HOMEGATE_MICROSOFT_CLIENT_ID / HOMEGATE_MICROSOFT_CLIENT_SECRET
//	HOMEGATE_OIDC_CLIENT_ID / HOMEGATE_OIDC_CLIENT_SECRET / HOMEGATE_OIDC_ISSUER_URL
//
// Header auth:
//
//	HOMEGATE_HEADER_AUTH_ENABLED="true"
//	HOMEGATE_HEADER_AUTH_SCHEMES="databricks,azure_app_service"
//	HOMEGATE_TRUSTED_PROXIES="10.0.0.5,10.0.0.6"
//
// Storage:
//
//	HOMEGATE_DATABASE_DRIVER="postgres"   # or sqlite3
//	HOMEGATE_DATABASE_DSN="postgres://homegate@db/homegate?sslmode=disable"
//	HOMEGATE_REDIS_URL="redis://localhost:6379/0"
//
// Observability:
//
//	HOMEGATE_LOG_LEVEL="info"
//	HOMEGATE_METRICS_ENABLED="true"
//	HOMEGATE_OTEL_ENABLED="true"
//	HOMEGATE_OTEL_ENDPOINT="otel-collector:4317"
package config
