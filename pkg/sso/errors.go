package sso

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when a callback presents a state value that was
// never issued, was already consumed, has expired, or belongs to another
// provider
var ErrInvalidState = errors.New("invalid or expired oauth state")

// Provider operations, used in errors and metric labels
const (
	OpDiscovery = "discovery"
	OpToken     = "token"
	OpUserInfo  = "userinfo"
)

// ProviderError reports a failed call to an external identity provider.
// Status is the upstream HTTP status, or 0 when no response was received.
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Body     string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s request failed", e.Provider, e.Op)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UnknownProviderError is returned for a provider name that is not configured
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("provider '%s' not configured", e.Name)
}
