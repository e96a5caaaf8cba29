package auth

import "fmt"

// RequireAuthenticated admits any resolved principal.
func RequireAuthenticated(p *Principal) (*Principal, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	return p, nil
}

// RequireRole admits a principal whose role equals role. An anonymous
// request fails with ErrUnauthenticated, a mismatched role with ErrForbidden.
//
// The role is read from the principal, which for cookie sessions comes from
// the signed token. A role changed in the directory therefore only applies
// once the user signs in again and receives a fresh token; the delay is
// bounded by the token TTL.
func RequireRole(p *Principal, role Role) (*Principal, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	if p.Role != role {
		return nil, fmt.Errorf("%w: %s role required", ErrForbidden, role)
	}
	return p, nil
}
