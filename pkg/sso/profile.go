package sso

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/platinummonkey/homegate/pkg/auth"
)

var errNoSubject = errors.New("profile has no subject identifier")

// GitHub: numeric id (login as fallback), nullable email, name or login
func mapGitHubProfile(provider string, p map[string]interface{}) (*auth.NormalizedIdentity, error) {
	id := firstString(p, "id", "login")
	if id == "" {
		return nil, errNoSubject
	}
	return &auth.NormalizedIdentity{
		Provider:    provider,
		ProviderID:  id,
		Email:       firstString(p, "email"),
		DisplayName: firstString(p, "name", "login"),
		AvatarURL:   firstString(p, "avatar_url"),
	}, nil
}

// Google v2 userinfo reports the subject as "id"; the OpenID variant uses "sub"
func mapGoogleProfile(provider string, p map[string]interface{}) (*auth.NormalizedIdentity, error) {
	id := firstString(p, "sub", "id", "email")
	if id == "" {
		return nil, errNoSubject
	}
	return &auth.NormalizedIdentity{
		Provider:    provider,
		ProviderID:  id,
		Email:       firstString(p, "email"),
		DisplayName: firstString(p, "name"),
		AvatarURL:   firstString(p, "picture"),
	}, nil
}

// Microsoft Graph /me has no avatar URL
func mapMicrosoftProfile(provider string, p map[string]interface{}) (*auth.NormalizedIdentity, error) {
	id := firstString(p, "id")
	if id == "" {
		return nil, errNoSubject
	}
	return &auth.NormalizedIdentity{
		Provider:    provider,
		ProviderID:  id,
		Email:       firstString(p, "mail", "userPrincipalName"),
		DisplayName: firstString(p, "displayName"),
	}, nil
}

// Standard OpenID Connect claims
func mapOIDCProfile(provider string, p map[string]interface{}) (*auth.NormalizedIdentity, error) {
	id := firstString(p, "sub")
	if id == "" {
		return nil, errNoSubject
	}
	return &auth.NormalizedIdentity{
		Provider:    provider,
		ProviderID:  id,
		Email:       firstString(p, "email"),
		DisplayName: firstString(p, "name", "preferred_username"),
		AvatarURL:   firstString(p, "picture"),
	}, nil
}

// firstString returns the first key holding a non-empty string or number
func firstString(p map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := p[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
