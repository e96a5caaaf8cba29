package api

import (
	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/directory"
)

// Preferred login methods reported by /auth/providers
const (
	MethodOAuth  = "oauth"
	MethodHeader = "header"
)

// ProvidersResponse lists the login options for the current request
type ProvidersResponse struct {
	Providers       []string `json:"providers"`
	PreferredMethod string   `json:"preferred_method"`
}

// AuthURLResponse is returned by /auth/login/{provider}
type AuthURLResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// MeResponse describes the current caller
type MeResponse struct {
	Principal *auth.Principal `json:"principal"`
	User      *directory.User `json:"user,omitempty"`
}

// SetRoleRequest is the body of PUT /admin/users/{id}/role
type SetRoleRequest struct {
	Role auth.Role `json:"role"`
}

// CreateAPIKeyRequest is the body of POST /admin/api-keys
type CreateAPIKeyRequest struct {
	OwnerEmail string `json:"owner_email"`
}

// DeactivateAPIKeyRequest is the body of POST /admin/api-keys/deactivate
type DeactivateAPIKeyRequest struct {
	Key string `json:"key"`
}

// APIKeyStatusRequest is the body of PUT /admin/api-keys/status
type APIKeyStatusRequest struct {
	OwnerEmail string `json:"owner_email"`
	Active     *bool  `json:"active"`
}

// APIKeyStatusResponse reports an owner's key status without the key itself
type APIKeyStatusResponse struct {
	OwnerEmail string `json:"owner_email"`
	Active     bool   `json:"active"`
}
