package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/homegate/pkg/auth"
)

var (
	// ErrUserNotFound is returned when a user ID does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidIdentity is returned for an identity without provider or provider_id
	ErrInvalidIdentity = errors.New("identity requires provider and provider_id")
)

// User is a directory record
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Role        auth.Role `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// Claims returns the session token claims for u
func (u *User) Claims() auth.Claims {
	return auth.Claims{
		Subject: u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Role:    u.Role,
	}
}

// Summary counts users by role
type Summary struct {
	TotalUsers int `json:"total_users"`
	AdminUsers int `json:"admin_users"`
}

// Directory is the user store consumed by identity resolution and login
type Directory interface {
	// Find returns nil, nil when no user has the key
	Find(ctx context.Context, provider, providerID string) (*User, error)

	// Upsert atomically finds or creates the user for identity
	Upsert(ctx context.Context, identity *auth.NormalizedIdentity, policy *RolePolicy) (*User, error)
}

// RolePolicy assigns roles to new users from an admin email allow-list
type RolePolicy struct {
	admins map[string]struct{}
}

// NewRolePolicy creates a policy; matching is case-insensitive
func NewRolePolicy(adminEmails []string) *RolePolicy {
	p := &RolePolicy{admins: make(map[string]struct{}, len(adminEmails))}
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			p.admins[email] = struct{}{}
		}
	}
	return p
}

// RoleFor returns admin for allow-listed emails and user otherwise
func (p *RolePolicy) RoleFor(email string) auth.Role {
	if p == nil || email == "" {
		return auth.RoleUser
	}
	if _, ok := p.admins[strings.ToLower(strings.TrimSpace(email))]; ok {
		return auth.RoleAdmin
	}
	return auth.RoleUser
}
