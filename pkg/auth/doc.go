// Package auth holds the principal model, session tokens, API keys and the
// admission guard for homegate.
//
// # Principals
//
// Every request resolves to at most one Principal:
//
//	p := &auth.Principal{
//		ID:         "2b6f...",
//		Email:      "alice@example.com",
//		Role:       auth.RoleUser,
//		AuthMethod: auth.AuthMethodOAuth,
//	}
//
// # Session Tokens
//
// TokenService signs HS256 JWTs carrying subject, email, name, role and an
// absolute expiry:
//
//	tokens, err := auth.NewTokenService(secret, "homegate")
//	signed, err := tokens.Issue(auth.Claims{Subject: user.ID, Role: auth.RoleAdmin}, 7*24*time.Hour)
//	claims, ok := tokens.Validate(signed)
//
// Validate never returns an error: a bad signature, a corrupted token, a
// foreign algorithm and an expiry at or before now all yield ok == false.
//
// There is no revocation. A disabled account keeps working until its token
// expires, and a role change made in the directory is only visible after
// the user signs in again.
//
// # API Keys
//
// Keys are stored verbatim in the api_keys table and matched exactly:
//
//	store := auth.NewSQLAPIKeyStore(db)
//	record, err := store.CreateAPIKey(ctx, "ops@example.com")
//	// record.Key: hg_xxx
//
// A key principal always has RoleUser.
//
// # Admission
//
//	p, err := auth.RequireRole(principal, auth.RoleAdmin)
//	switch {
//	case errors.Is(err, auth.ErrUnauthenticated): // 401
//	case errors.Is(err, auth.ErrForbidden):       // 403
//	}
package auth
