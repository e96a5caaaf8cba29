package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is the "iss" claim written into session tokens
	DefaultIssuer = "homegate"
	// MinSecretLength is the shortest accepted HMAC signing key (256 bits)
	MinSecretLength = 32
)

// Claims is the content of a session token
type Claims struct {
	Subject   string
	Email     string
	Name      string
	Role      Role
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 session tokens.
//
// Tokens are self-contained: there is no revocation list, so a token stays
// valid until its embedded expiry even if the account changes server-side.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenService creates a token service signing with secret
func NewTokenService(secret []byte, issuer string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &TokenService{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source, for tests
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a token for c that expires ttl from now. c.ExpiresAt is ignored.
func (s *TokenService) Issue(c Claims, ttl time.Duration) (string, error) {
	if c.Subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	if c.Role == "" {
		c.Role = RoleUser
	}

	now := s.now()
	claims := tokenClaims{
		Email: c.Email,
		Name:  c.Name,
		Role:  c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate returns the claims of a well-formed, correctly signed, unexpired
// token. Any problem, including expiry <= now, yields (nil, false).
func (s *TokenService) Validate(token string) (*Claims, bool) {
	if token == "" {
		return nil, false
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)

	var claims tokenClaims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, false
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, false
	}

	role := claims.Role
	if !role.Valid() {
		role = RoleUser
	}

	return &Claims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, true
}

// Principal builds the request principal carried by these claims
func (c *Claims) Principal(method AuthMethod) *Principal {
	expiresAt := c.ExpiresAt
	return &Principal{
		ID:         c.Subject,
		Email:      c.Email,
		Name:       c.Name,
		Role:       c.Role,
		AuthMethod: method,
		ExpiresAt:  &expiresAt,
	}
}
