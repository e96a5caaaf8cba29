package auth

import (
	"strings"
	"time"
)

// Role is the access level attached to a principal
type Role string

const (
	RoleAdmin Role = "admin" // Full access, including admin-only routes
	RoleUser  Role = "user"  // Default role for every new account
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// AuthMethod records which step of the resolution chain produced a principal
type AuthMethod string

const (
	AuthMethodOAuth  AuthMethod = "oauth"   // Session token from the access_token cookie
	AuthMethodHeader AuthMethod = "header"  // Identity injected by a trusted proxy
	AuthMethodAPIKey AuthMethod = "api_key" // Bearer API key
)

// Principal is the identity and role resolved for a single request
type Principal struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	AuthMethod AuthMethod `json:"auth_method"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// HasRole checks if the principal carries exactly the given role
func (p *Principal) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	return p.Role == role
}

// IsAdmin is shorthand for HasRole(RoleAdmin)
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// NormalizedIdentity is the provider-agnostic shape of an external profile.
// (Provider, ProviderID) is the directory key; Email may be empty because
// some providers omit it.
type NormalizedIdentity struct {
	Provider    string `json:"provider"`
	ProviderID  string `json:"provider_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// DefaultName is used when neither a display name nor an email is known
const DefaultName = "User"

// ApplyDefaults fills the fallbacks for a missing name and email.
// The name falls back to the local part of a real email, then to
// DefaultName. A missing email becomes "{provider}@local".
func (i *NormalizedIdentity) ApplyDefaults() {
	if i.DisplayName == "" {
		if local := EmailLocalPart(i.Email); local != "" {
			i.DisplayName = local
		} else {
			i.DisplayName = DefaultName
		}
	}
	if i.Email == "" {
		i.Email = SyntheticEmail(i.Provider)
	}
}

// SyntheticEmail returns the placeholder address used for a provider that
// did not disclose one
func SyntheticEmail(provider string) string {
	return provider + "@local"
}

// EmailLocalPart returns everything before the first "@", or "" for an
// empty address
func EmailLocalPart(email string) string {
	if email == "" {
		return ""
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
