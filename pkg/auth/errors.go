package auth

import "errors"

var (
	// ErrUnauthenticated means no principal was resolved where one is required (401)
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden means a principal was resolved but its role is insufficient (403)
	ErrForbidden = errors.New("insufficient role")
)
