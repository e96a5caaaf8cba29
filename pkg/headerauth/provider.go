package headerauth

import (
	"fmt"
	"net/http"

	"github.com/platinummonkey/homegate/pkg/auth"
)

// Scheme names, also used as the directory provider name
const (
	SchemeDatabricks      = "databricks"
	SchemeAzureAppService = "azure_app_service"
)

// Provider extracts an identity from proxy-injected headers
type Provider interface {
	// Name returns the scheme name
	Name() string

	// ValidateSource reports whether clientIP may inject identity headers
	ValidateSource(clientIP string) bool

	// ExtractIdentity returns nil when the headers are absent or malformed
	ExtractIdentity(h http.Header) *auth.NormalizedIdentity

	// Present reports whether the scheme's identity header is on the request
	Present(h http.Header) bool
}

// trustedSource implements ValidateSource for every scheme
type trustedSource struct {
	allowlist *Allowlist
}

func (s trustedSource) ValidateSource(clientIP string) bool {
	return s.allowlist.Contains(clientIP)
}

// NewProviders builds the enabled schemes in priority order
func NewProviders(names []string, allowlist *Allowlist) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("header auth scheme %s listed twice", name)
		}
		seen[name] = true

		switch name {
		case SchemeDatabricks:
			providers = append(providers, NewDatabricksProvider(allowlist))
		case SchemeAzureAppService:
			providers = append(providers, NewAzureAppServiceProvider(allowlist))
		default:
			return nil, fmt.Errorf("unknown header auth scheme: %s", name)
		}
	}
	return providers, nil
}
