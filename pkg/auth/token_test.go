package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestTokenService(t *testing.T, now time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, "homegate-test")
	require.NoError(t, err)
	return svc.WithClock(fixedClock(now))
}

func TestNewTokenService_RejectsShortSecret(t *testing.T) {
	_, err := NewTokenService([]byte("short"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, now)

	token, err := svc.Issue(Claims{
		Subject: "user-1",
		Email:   "alice@example.com",
		Name:    "Alice",
		Role:    RoleAdmin,
	}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, ok := svc.Validate(token)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.True(t, claims.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestTokenService_Expiry(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 10 * time.Minute
	svc := newTestTokenService(t, issuedAt)

	token, err := svc.Issue(Claims{Subject: "user-1"}, ttl)
	require.NoError(t, err)

	t.Run("valid one second before expiry", func(t *testing.T) {
		svc.WithClock(fixedClock(issuedAt.Add(ttl - time.Second)))
		claims, ok := svc.Validate(token)
		require.True(t, ok)
		assert.Equal(t, "user-1", claims.Subject)
	})

	t.Run("invalid exactly at expiry", func(t *testing.T) {
		svc.WithClock(fixedClock(issuedAt.Add(ttl)))
		_, ok := svc.Validate(token)
		assert.False(t, ok)
	})

	t.Run("invalid one second after expiry", func(t *testing.T) {
		svc.WithClock(fixedClock(issuedAt.Add(ttl + time.Second)))
		claims, ok := svc.Validate(token)
		assert.False(t, ok)
		assert.Nil(t, claims)
	})
}

func TestTokenService_ValidateRejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, now)

	good, err := svc.Issue(Claims{Subject: "user-1"}, time.Hour)
	require.NoError(t, err)

	other, err := NewTokenService([]byte("ffffffffffffffffffffffffffffffff"), "homegate-test")
	require.NoError(t, err)
	foreign, err := other.WithClock(fixedClock(now)).Issue(Claims{Subject: "user-1"}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewTokenService(testSecret, "someone-else")
	require.NoError(t, err)
	wrongIssuer, err := otherIssuer.WithClock(fixedClock(now)).Issue(Claims{Subject: "user-1"}, time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"iss": "homegate-test",
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"iss": "homegate-test",
	}).SignedString(testSecret)
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"signed with another secret", foreign},
		{"wrong issuer", wrongIssuer},
		{"alg none", unsigned},
		{"missing expiry", noExpiry},
		{"tampered payload", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, ok := svc.Validate(tt.token)
			assert.False(t, ok)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenService_IssueValidation(t *testing.T) {
	svc := newTestTokenService(t, time.Now())

	_, err := svc.Issue(Claims{}, time.Hour)
	assert.Error(t, err)

	_, err = svc.Issue(Claims{Subject: "user-1"}, 0)
	assert.Error(t, err)
}

func TestTokenService_DefaultsRole(t *testing.T) {
	svc := newTestTokenService(t, time.Now())

	token, err := svc.Issue(Claims{Subject: "user-1"}, time.Hour)
	require.NoError(t, err)

	claims, ok := svc.Validate(token)
	require.True(t, ok)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestClaims_Principal(t *testing.T) {
	exp := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	c := &Claims{Subject: "u1", Email: "a@b.c", Name: "A", Role: RoleAdmin, ExpiresAt: exp}

	p := c.Principal(AuthMethodOAuth)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, RoleAdmin, p.Role)
	assert.Equal(t, AuthMethodOAuth, p.AuthMethod)
	require.NotNil(t, p.ExpiresAt)
	assert.True(t, p.ExpiresAt.Equal(exp))
}
