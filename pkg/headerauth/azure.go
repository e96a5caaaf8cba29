package headerauth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/platinummonkey/homegate/pkg/auth"
)

const HeaderAzureClientPrincipal = "X-MS-CLIENT-PRINCIPAL"

// clientPrincipal is the decoded X-MS-CLIENT-PRINCIPAL payload
type clientPrincipal struct {
	IdentityProvider string   `json:"identityProvider"`
	UserID           string   `json:"userId"`
	UserDetails      string   `json:"userDetails"`
	UserRoles        []string `json:"userRoles"`
}

// AzureAppServiceProvider decodes the base64 JSON principal injected by
// App Service authentication
type AzureAppServiceProvider struct {
	trustedSource
}

// NewAzureAppServiceProvider creates the azure_app_service scheme
func NewAzureAppServiceProvider(allowlist *Allowlist) *AzureAppServiceProvider {
	return &AzureAppServiceProvider{trustedSource{allowlist: allowlist}}
}

func (p *AzureAppServiceProvider) Name() string { return SchemeAzureAppService }

func (p *AzureAppServiceProvider) Present(h http.Header) bool {
	return h.Get(HeaderAzureClientPrincipal) != ""
}

func (p *AzureAppServiceProvider) ExtractIdentity(h http.Header) *auth.NormalizedIdentity {
	encoded := strings.TrimSpace(h.Get(HeaderAzureClientPrincipal))
	if encoded == "" {
		return nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}

	var principal clientPrincipal
	if err := json.Unmarshal(raw, &principal); err != nil {
		return nil
	}
	if principal.UserID == "" {
		return nil
	}

	// userDetails is usually the sign-in email, but can be a bare username
	email := ""
	if strings.Contains(principal.UserDetails, "@") {
		email = principal.UserDetails
	}
	name := auth.EmailLocalPart(principal.UserDetails)

	identity := &auth.NormalizedIdentity{
		Provider:    SchemeAzureAppService,
		ProviderID:  principal.UserID,
		Email:       email,
		DisplayName: name,
	}
	identity.ApplyDefaults()
	return identity
}
