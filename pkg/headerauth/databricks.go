package headerauth

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/homegate/pkg/auth"
)

const (
	HeaderDatabricksEmail = "X-Databricks-User-Email"
	HeaderDatabricksName  = "X-Databricks-User-Name"
)

// DatabricksProvider reads the user headers a Databricks App proxy injects.
// The email is the only stable identifier, so it doubles as provider_id.
type DatabricksProvider struct {
	trustedSource
}

// NewDatabricksProvider creates the databricks scheme
func NewDatabricksProvider(allowlist *Allowlist) *DatabricksProvider {
	return &DatabricksProvider{trustedSource{allowlist: allowlist}}
}

func (p *DatabricksProvider) Name() string { return SchemeDatabricks }

func (p *DatabricksProvider) Present(h http.Header) bool {
	return h.Get(HeaderDatabricksEmail) != ""
}

func (p *DatabricksProvider) ExtractIdentity(h http.Header) *auth.NormalizedIdentity {
	email := strings.TrimSpace(h.Get(HeaderDatabricksEmail))
	if email == "" {
		return nil
	}

	identity := &auth.NormalizedIdentity{
		Provider:    SchemeDatabricks,
		ProviderID:  email,
		Email:       email,
		DisplayName: strings.TrimSpace(h.Get(HeaderDatabricksName)),
	}
	identity.ApplyDefaults()
	return identity
}
