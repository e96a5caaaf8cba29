// Package headerauth accepts identities injected as request headers by a
// trusted front-end proxy, as done by Databricks Apps and Azure App Service.
//
// A header identity is only honoured when the connecting peer's IP is in the
// Allowlist. Extraction never fails loudly: a missing or malformed header
// yields a nil identity so the caller moves on to the next authentication
// method.
//
//	allowlist, err := headerauth.NewAllowlist([]string{"10.0.0.5"})
//	providers, err := headerauth.NewProviders([]string{"databricks"}, allowlist)
//	for _, p := range providers {
//		if p.ValidateSource(clientIP) {
//			if identity := p.ExtractIdentity(r.Header); identity != nil {
//				// upsert and issue a token
//			}
//		}
//	}
package headerauth
